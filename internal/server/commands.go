package server

import (
	"fmt"
	"strings"

	"github.com/dreamware/kupe/internal/resp"
)

// execute validates one framed request and runs it against the shards,
// returning the reply value.
//
// A valid command is an array of bulk strings whose first element names a
// supported verb (case-insensitive) with the right arity. Anything else
// produces an error reply; application-level errors never drop the
// connection, only byte-level ones do.
//
// The router computes the owning shard once per key. Only single-key
// operations exist (DEL iterates keys one at a time), so no call path ever
// holds two shard locks.
func (o *Orchestrator) execute(v resp.Value) resp.Value {
	if v.Kind != resp.Array || v.Null || len(v.Elems) == 0 {
		return resp.NewError("ERR invalid command format")
	}
	for i := range v.Elems {
		if v.Elems[i].Kind != resp.BulkString || v.Elems[i].Null {
			return resp.NewError("ERR invalid command format")
		}
	}

	verb := strings.ToUpper(string(v.Elems[0].Str))
	args := v.Elems[1:]

	switch verb {
	case "GET":
		if len(args) != 1 {
			return arityError("get")
		}
		key := string(args[0].Str)
		value, found := o.router.ShardFor(key).Get(key)
		if !found {
			return resp.NewNullBulkString()
		}
		return value

	case "SET":
		if len(args) != 2 {
			return arityError("set")
		}
		key := string(args[0].Str)
		o.router.ShardFor(key).Set(key, args[1])
		return resp.NewSimpleString("OK")

	case "DEL":
		if len(args) < 1 {
			return arityError("del")
		}
		// Counts removals performed, so DEL k k on a present k is 1:
		// the second pass finds nothing.
		var removed int64
		for i := range args {
			key := string(args[i].Str)
			if o.router.ShardFor(key).Delete(key) {
				removed++
			}
		}
		return resp.NewInteger(removed)
	}

	return resp.NewError(fmt.Sprintf("ERR unknown command '%s'", verb))
}

func arityError(verb string) resp.Value {
	return resp.NewError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", verb))
}
