package server

import (
	"sync"

	"github.com/dreamware/kupe/internal/resp"
)

// connPhase tracks where a connection currently is in the pipeline.
type connPhase int

const (
	// connIdle: no stage owns the connection; the reactor is waiting for
	// readiness.
	connIdle connPhase = iota
	// connReading: a read-stage worker is draining the socket.
	connReading
	// connParsing: an execute-stage worker is framing and running
	// commands.
	connParsing
	// connWriting: a write-stage worker is draining the output buffer.
	connWriting
	// connClosing: teardown has begun. Any stage job that observes this
	// phase returns without touching the fd again.
	connClosing
)

// String returns the phase name for log messages.
func (p connPhase) String() string {
	switch p {
	case connIdle:
		return "idle"
	case connReading:
		return "reading"
	case connParsing:
		return "parsing"
	case connWriting:
		return "writing"
	case connClosing:
		return "closing"
	}
	return "unknown"
}

// compactThreshold is the consumed-prefix size beyond which the input
// buffer is compacted. A consumed prefix of at least half the buffer also
// triggers compaction, so small buffers compact too.
const compactThreshold = 16 << 10

// conn is the per-socket state shared by the reactor index and the stage
// jobs that operate on it.
//
// Locking: mu guards every field except fd, which is immutable after
// construction. Stage jobs hold mu while mutating buffers or phase, release
// it before any call that can acquire the all-sockets lock (teardown), and
// may acquire the fd index-set locks while holding it.
//
// At most one stage job is active on a conn at any instant. That is
// enforced by the orchestrator's index sets and one-shot registration, not
// by mu: the mutex guards data, not scheduling.
type conn struct {
	// inBuf accumulates bytes read off the socket that have not yet been
	// consumed by the parser. inBuf[:parseCursor] is consumed;
	// bytes beyond it may contain partial frames.
	inBuf []byte

	// outBuf queues reply bytes not yet written to the socket. It drains
	// from the front, possibly across several write-stage passes.
	outBuf []byte

	// parseCursor is the index in inBuf of the next byte to parse.
	parseCursor int

	// bufferCap bounds inBuf and outBuf independently. Exceeding either
	// is a resource error that tears the connection down.
	bufferCap int

	// fd is the OS file descriptor, unique among live connections.
	// Immutable after construction.
	fd int

	// phase is the connection's position in the pipeline state machine.
	phase connPhase

	// closeAfterDrain marks a connection whose stream is unrecoverable
	// (framing error): the queued error reply drains, then it closes.
	closeAfterDrain bool

	// mu guards all mutable fields above.
	mu sync.Mutex
}

func newConn(fd, bufferCap int) *conn {
	return &conn{fd: fd, bufferCap: bufferCap}
}

// appendIn appends freshly read bytes, reporting false when the input
// buffer cap is exceeded. Caller holds mu.
func (c *conn) appendIn(b []byte) bool {
	if len(c.inBuf)+len(b) > c.bufferCap {
		return false
	}
	c.inBuf = append(c.inBuf, b...)
	return true
}

// unparsed returns the not-yet-consumed tail of the input buffer. Caller
// holds mu; the slice is invalidated by appendIn and compact.
func (c *conn) unparsed() []byte {
	return c.inBuf[c.parseCursor:]
}

// queueReply encodes v onto the output buffer, reporting false when the
// output buffer cap is exceeded. Caller holds mu.
func (c *conn) queueReply(v resp.Value) bool {
	encoded := v.Append(c.outBuf)
	if len(encoded) > c.bufferCap {
		return false
	}
	c.outBuf = encoded
	return true
}

// compact drops the consumed prefix of the input buffer once it is worth
// the copy: past the fixed threshold, or past half the buffer. Caller
// holds mu. Parsed values that alias inBuf must not be live across a call.
func (c *conn) compact() {
	if c.parseCursor == 0 {
		return
	}
	if c.parseCursor < compactThreshold && c.parseCursor*2 < len(c.inBuf) {
		return
	}
	n := copy(c.inBuf, c.inBuf[c.parseCursor:])
	c.inBuf = c.inBuf[:n]
	c.parseCursor = 0
}
