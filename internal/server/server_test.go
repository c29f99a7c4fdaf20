package server

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dreamware/kupe/internal/resp"
	"github.com/dreamware/kupe/internal/shard"
)

// newTestOrchestrator builds an orchestrator with just enough wired up for
// command dispatch and index-set tests; no sockets, pools, or reactor.
func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	router, err := shard.NewRouter(4)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	return &Orchestrator{
		router:        router,
		allSockets:    make(map[int]*conn),
		epollSet:      make(map[int]struct{}),
		writeSet:      make(map[int]struct{}),
		processingSet: make(map[int]struct{}),
		listenFd:      -1,
	}
}

// command builds a RESP command array from string arguments.
func command(args ...string) resp.Value {
	elems := make([]resp.Value, len(args))
	for i, a := range args {
		elems[i] = resp.NewBulkString([]byte(a))
	}
	return resp.NewArray(elems)
}

// TestExecuteDispatch tests command validation and GET/SET/DEL semantics.
func TestExecuteDispatch(t *testing.T) {
	t.Run("set then get", func(t *testing.T) {
		o := newTestOrchestrator(t)

		reply := o.execute(command("SET", "foo", "bar"))
		if reply.Kind != resp.SimpleString || string(reply.Str) != "OK" {
			t.Errorf("SET reply = %+v, want +OK", reply)
		}

		reply = o.execute(command("GET", "foo"))
		if reply.Kind != resp.BulkString || string(reply.Str) != "bar" {
			t.Errorf("GET reply = %+v, want bulk bar", reply)
		}
	})

	t.Run("get missing key", func(t *testing.T) {
		o := newTestOrchestrator(t)

		reply := o.execute(command("GET", "missng"))
		if reply.Kind != resp.BulkString || !reply.Null {
			t.Errorf("GET missing = %+v, want nil bulk", reply)
		}
	})

	t.Run("set replaces", func(t *testing.T) {
		o := newTestOrchestrator(t)

		o.execute(command("SET", "k", "v1"))
		o.execute(command("SET", "k", "v2"))
		reply := o.execute(command("GET", "k"))
		if string(reply.Str) != "v2" {
			t.Errorf("GET after overwrite = %q, want v2", reply.Str)
		}
	})

	t.Run("verbs are case-insensitive", func(t *testing.T) {
		o := newTestOrchestrator(t)

		if reply := o.execute(command("set", "k", "v")); reply.Kind != resp.SimpleString {
			t.Errorf("lowercase set rejected: %+v", reply)
		}
		if reply := o.execute(command("gEt", "k")); string(reply.Str) != "v" {
			t.Errorf("mixed-case get failed: %+v", reply)
		}
	})

	t.Run("del counts removals", func(t *testing.T) {
		o := newTestOrchestrator(t)
		o.execute(command("SET", "a", "1"))

		// Only a exists
		reply := o.execute(command("DEL", "a", "b"))
		if reply.Kind != resp.Integer || reply.Int != 1 {
			t.Errorf("DEL a b = %+v, want :1", reply)
		}

		// Absent key deletes to zero, not an error
		reply = o.execute(command("DEL", "a"))
		if reply.Kind != resp.Integer || reply.Int != 0 {
			t.Errorf("DEL absent = %+v, want :0", reply)
		}
	})

	t.Run("del repeated key counts once", func(t *testing.T) {
		o := newTestOrchestrator(t)
		o.execute(command("SET", "k", "v"))

		reply := o.execute(command("DEL", "k", "k", "k"))
		if reply.Int != 1 {
			t.Errorf("DEL k k k = :%d, want :1", reply.Int)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		o := newTestOrchestrator(t)

		reply := o.execute(command("PING"))
		if reply.Kind != resp.Error || !strings.HasPrefix(string(reply.Str), "ERR") {
			t.Errorf("PING = %+v, want -ERR", reply)
		}
	})

	t.Run("wrong arity", func(t *testing.T) {
		o := newTestOrchestrator(t)

		for _, cmd := range [][]string{
			{"GET"},
			{"GET", "k", "extra"},
			{"SET", "k"},
			{"SET", "k", "v", "extra"},
			{"DEL"},
		} {
			reply := o.execute(command(cmd...))
			if reply.Kind != resp.Error {
				t.Errorf("%v accepted, want arity error", cmd)
			}
		}
	})

	t.Run("non-array and non-bulk commands", func(t *testing.T) {
		o := newTestOrchestrator(t)

		for _, v := range []resp.Value{
			resp.NewSimpleString("GET"),
			resp.NewNullArray(),
			resp.NewArray(nil),
			resp.NewArray([]resp.Value{resp.NewInteger(1)}),
			resp.NewArray([]resp.Value{resp.NewBulkString([]byte("GET")), resp.NewNullBulkString()}),
		} {
			reply := o.execute(v)
			if reply.Kind != resp.Error {
				t.Errorf("%+v accepted, want error reply", v)
			}
		}
	})

	t.Run("binary and empty values round trip", func(t *testing.T) {
		o := newTestOrchestrator(t)

		blob := []byte{0, 13, 10, 255}
		o.execute(resp.NewArray([]resp.Value{
			resp.NewBulkString([]byte("SET")),
			resp.NewBulkString([]byte("blob")),
			resp.NewBulkString(blob),
		}))
		reply := o.execute(command("GET", "blob"))
		if !bytes.Equal(reply.Str, blob) {
			t.Errorf("binary value corrupted: %x", reply.Str)
		}

		o.execute(command("SET", "empty", ""))
		reply = o.execute(command("GET", "empty"))
		if reply.Null || len(reply.Str) != 0 {
			t.Errorf("empty value = %+v, want empty bulk", reply)
		}
	})
}

// TestConnBuffers tests input buffer accounting and compaction.
func TestConnBuffers(t *testing.T) {
	t.Run("append respects cap", func(t *testing.T) {
		c := newConn(-1, 8)
		if !c.appendIn([]byte("12345678")) {
			t.Error("append within cap rejected")
		}
		if c.appendIn([]byte("9")) {
			t.Error("append beyond cap accepted")
		}
	})

	t.Run("queue reply respects cap", func(t *testing.T) {
		c := newConn(-1, 8)
		if !c.queueReply(resp.NewSimpleString("OK")) {
			t.Error("small reply rejected")
		}
		if c.queueReply(resp.NewBulkString([]byte("0123456789"))) {
			t.Error("oversized reply accepted")
		}
	})

	t.Run("compact drops consumed prefix", func(t *testing.T) {
		c := newConn(-1, 1<<20)
		c.appendIn([]byte("consumedrest"))
		c.parseCursor = 8

		// Cursor is past half the buffer, so compaction fires.
		c.compact()
		if c.parseCursor != 0 {
			t.Errorf("parseCursor = %d after compact, want 0", c.parseCursor)
		}
		if string(c.inBuf) != "rest" {
			t.Errorf("inBuf = %q after compact, want rest", c.inBuf)
		}
	})

	t.Run("compact skips small prefixes", func(t *testing.T) {
		c := newConn(-1, 1<<20)
		c.appendIn(bytes.Repeat([]byte("x"), 1000))
		c.parseCursor = 10

		c.compact()
		if c.parseCursor != 10 {
			t.Errorf("compact fired on a small prefix (cursor=%d)", c.parseCursor)
		}
	})

	t.Run("unparsed follows cursor", func(t *testing.T) {
		c := newConn(-1, 1<<20)
		c.appendIn([]byte("abcdef"))
		c.parseCursor = 4
		if string(c.unparsed()) != "ef" {
			t.Errorf("unparsed = %q, want ef", c.unparsed())
		}
	})
}

// TestIndexSetMoves verifies the disjoint-set invariant across moves and
// the lost-race behavior.
func TestIndexSetMoves(t *testing.T) {
	o := newTestOrchestrator(t)
	fd := 42
	o.epollSet[fd] = struct{}{}

	inSets := func() int {
		n := 0
		if _, ok := o.epollSet[fd]; ok {
			n++
		}
		if _, ok := o.processingSet[fd]; ok {
			n++
		}
		if _, ok := o.writeSet[fd]; ok {
			n++
		}
		return n
	}

	steps := []struct {
		name string
		move func(int) bool
	}{
		{"epoll→processing", o.moveEpollToProcessing},
		{"processing→write", o.moveProcessingToWrite},
		{"write→processing", o.moveWriteToProcessing},
		{"processing→epoll", o.moveProcessingToEpoll},
		{"epoll→processing again", o.moveEpollToProcessing},
		{"processing→write again", o.moveProcessingToWrite},
		{"write→epoll", o.moveWriteToEpoll},
	}
	for _, step := range steps {
		if !step.move(fd) {
			t.Fatalf("%s: move failed with fd in source set", step.name)
		}
		if n := inSets(); n != 1 {
			t.Fatalf("%s: fd in %d sets, want exactly 1", step.name, n)
		}
	}

	if o.inWriteSet(fd) {
		t.Error("inWriteSet reports true for an fd in the epoll set")
	}

	// A move whose source no longer holds the fd must refuse and leave
	// membership untouched.
	if o.moveProcessingToWrite(fd) {
		t.Error("move from empty source set succeeded")
	}
	if n := inSets(); n != 1 {
		t.Errorf("lost-race move changed membership (%d sets)", n)
	}
}

// TestConfigDefaults verifies zero-value config fields take documented
// defaults.
func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.withDefaults()

	if cfg.Listen != ":6379" {
		t.Errorf("Listen default = %q", cfg.Listen)
	}
	if cfg.NumShards != 10 {
		t.Errorf("NumShards default = %d", cfg.NumShards)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers default = %d", cfg.Workers)
	}
	if cfg.MaxEvents != 10 {
		t.Errorf("MaxEvents default = %d", cfg.MaxEvents)
	}
	if cfg.BufferCap != 16<<20 {
		t.Errorf("BufferCap default = %d", cfg.BufferCap)
	}
}
