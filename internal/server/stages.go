package server

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/dreamware/kupe/internal/resp"
)

// maxBatchFrames bounds how many frames one execute job runs before
// yielding, so a pipelining connection cannot monopolize a worker.
const maxBatchFrames = 32

// readScratchSize is the per-pass read chunk size.
const readScratchSize = 4096

// readJob drains a readable socket into the connection's input buffer.
//
// Precondition: the fd is in the processing set and in neither of the other
// two index sets. The job does not frame or parse; on success it hands the
// connection to the execute stage, leaving the fd where it is (ownership
// transfers between jobs, not sets).
type readJob struct {
	o *Orchestrator
	c *conn
}

func (j *readJob) Run() int {
	o, c := j.o, j.c

	c.mu.Lock()
	if c.phase == connClosing {
		c.mu.Unlock()
		return 0
	}
	c.phase = connReading

	scratch := make([]byte, readScratchSize)
	for {
		n, err := unix.Read(c.fd, scratch)
		if n > 0 {
			if !c.appendIn(scratch[:n]) {
				c.mu.Unlock()
				o.removeSocket(c.fd, "input buffer cap exceeded")
				return -1
			}
			continue
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			// Kernel buffer drained; this pass is done.
			break
		}
		if n == 0 && err == nil {
			// EOF. Any partial frame in inBuf can never complete.
			c.mu.Unlock()
			o.removeSocket(c.fd, "peer closed connection")
			return 0
		}
		c.mu.Unlock()
		o.removeSocket(c.fd, fmt.Sprintf("read error: %v", err))
		return -1
	}
	c.mu.Unlock()

	// fd stays in the processing set; the execute job takes over.
	o.execPool.Submit(&executeJob{o: o, c: c})
	return 0
}

// executeJob frames requests out of the input buffer, runs them against the
// shards, and queues the replies. One job handles up to maxBatchFrames
// pipelined frames to amortize wake-ups.
type executeJob struct {
	o *Orchestrator
	c *conn
}

func (j *executeJob) Run() int {
	o, c := j.o, j.c

	c.mu.Lock()
	if c.phase == connClosing {
		c.mu.Unlock()
		return 0
	}
	c.phase = connParsing

	frames := 0
	for frames < maxBatchFrames && !c.closeAfterDrain {
		v, n, err := resp.Parse(c.unparsed())
		if errors.Is(err, resp.ErrIncomplete) {
			break
		}
		if err != nil {
			// Framing error: the byte stream cannot be resynchronized.
			// Queue the protocol error reply and close once it drains.
			if !c.queueReply(resp.NewError("ERR protocol error")) {
				c.mu.Unlock()
				o.removeSocket(c.fd, "output buffer cap exceeded")
				return -1
			}
			c.closeAfterDrain = true
			break
		}
		c.parseCursor += n
		reply := o.execute(v)
		if !c.queueReply(reply) {
			c.mu.Unlock()
			o.removeSocket(c.fd, "output buffer cap exceeded")
			return -1
		}
		frames++
	}
	c.compact()

	if len(c.outBuf) > 0 {
		// Replies pending: hand the connection to the write stage. If
		// unparsed bytes remain (batch cap, or bytes behind a partial
		// frame) the write stage routes back here after draining.
		if !o.moveProcessingToWrite(c.fd) {
			c.mu.Unlock()
			return 0
		}
		c.mu.Unlock()
		o.writePool.Submit(&writeJob{o: o, c: c})
		return 0
	}

	// Nothing to write and nothing parseable: wait for more bytes.
	c.phase = connIdle
	moved := o.moveProcessingToEpoll(c.fd)
	c.mu.Unlock()
	if moved {
		if err := o.rearm(c.fd, false); err != nil {
			o.removeSocket(c.fd, fmt.Sprintf("rearm failed: %v", err))
			return -1
		}
	}
	return 0
}

// writeJob drains the connection's output buffer to the socket, handling
// short writes by rearming for writability.
type writeJob struct {
	o *Orchestrator
	c *conn
}

func (j *writeJob) Run() int {
	o, c := j.o, j.c

	c.mu.Lock()
	if c.phase == connClosing {
		c.mu.Unlock()
		return 0
	}
	c.phase = connWriting

	for len(c.outBuf) > 0 {
		n, err := unix.Write(c.fd, c.outBuf)
		if n > 0 {
			c.outBuf = c.outBuf[n:]
			continue
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			// Socket buffer full: stay in the write set and wait for
			// the next writability transition.
			c.mu.Unlock()
			if err := o.rearm(c.fd, true); err != nil {
				o.removeSocket(c.fd, fmt.Sprintf("rearm failed: %v", err))
				return -1
			}
			return 0
		}
		c.mu.Unlock()
		o.removeSocket(c.fd, fmt.Sprintf("write error: %v", err))
		return -1
	}
	c.outBuf = nil

	if c.closeAfterDrain {
		c.mu.Unlock()
		o.removeSocket(c.fd, "protocol error")
		return 0
	}

	if c.parseCursor < len(c.inBuf) {
		// Pipelined bytes are already buffered: go straight back to the
		// execute stage without touching the reactor.
		if !o.moveWriteToProcessing(c.fd) {
			c.mu.Unlock()
			return 0
		}
		c.mu.Unlock()
		o.execPool.Submit(&executeJob{o: o, c: c})
		return 0
	}

	c.phase = connIdle
	moved := o.moveWriteToEpoll(c.fd)
	c.mu.Unlock()
	if moved {
		if err := o.rearm(c.fd, false); err != nil {
			o.removeSocket(c.fd, fmt.Sprintf("rearm failed: %v", err))
			return -1
		}
	}
	return 0
}
