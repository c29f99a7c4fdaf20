// Package server implements the connection orchestrator: the readiness
// reactor, the three-stage worker pipeline, and the per-connection state
// machine that together serve RESP commands against the sharded engine.
//
// # Overview
//
// The server multiplexes thousands of non-blocking TCP connections over a
// small, fixed number of OS threads. No worker ever blocks on socket I/O:
// sockets are edge-triggered and one-shot, workers return to their pool the
// moment a socket would block, and the reactor hands the connection back to
// a worker when the kernel reports the next readiness transition.
//
// # Architecture
//
//	┌──────────┐   accept    ┌───────────────────────────────┐
//	│ Acceptor │ ──────────▶ │ allSockets (fd → conn)        │
//	└──────────┘             │ epollSet │ processingSet │    │
//	                         │          │ writeSet      │    │
//	                         └───────────────────────────────┘
//	┌──────────┐  readable   ┌──────────┐  frames   ┌──────────┐
//	│ Reactor  │ ──────────▶ │   Read   │ ────────▶ │ Execute  │
//	│ (epoll)  │  writable   │   pool   │           │   pool   │──▶ shards
//	│          │ ──────┐     └──────────┘           └────┬─────┘
//	└────▲─────┘       │                                 │ replies
//	     │ rearm       └────────────────────────▶ ┌──────▼─────┐
//	     └───────────────────────────────────────  │   Write    │
//	                                               │    pool    │
//	                                               └────────────┘
//
// The acceptor creates a connection and registers its fd with the reactor.
// The reactor observes one readiness transition per registration (one-shot,
// edge-triggered) and enqueues a job into the matching stage pool. Each
// stage operates on the connection, may enqueue the next stage's job, and
// eventually hands the fd back to the reactor by rearming it. Only the
// execute stage touches shards.
//
// # Core Components
//
// Orchestrator: The owned root of the server
//   - Builds shards, pools, reactor, listener in that order
//   - Owns the authoritative fd → connection map
//   - Tears everything down in reverse order on Stop
//
// reactor: Edge-triggered one-shot epoll facility
//   - Add registers a new fd interested in readability
//   - Rearm re-registers for the next transition (read or write side)
//   - Wakeup interrupts a blocked Wait through a self-pipe
//
// conn: Per-socket state
//   - Input buffer plus a parse cursor over it
//   - Output buffer supporting partial drains
//   - Phase state machine (idle, reading, parsing, writing, closing)
//
// readJob / executeJob / writeJob: The three pipeline stages
//   - Read drains the socket into the input buffer
//   - Execute frames requests, runs them, queues replies
//   - Write drains the output buffer back to the socket
//
// # Connection Lifecycle
//
// A connection moves through a fixed sequence of owners:
//
//  1. Acceptor accepts the socket, sets it non-blocking, inserts it into
//     allSockets, and registers it with the reactor (epollSet).
//  2. Bytes arrive; the reactor reports readable and moves the fd to
//     processingSet with a read job queued.
//  3. The read job drains the kernel buffer and chains an execute job;
//     the fd stays in processingSet between the two.
//  4. The execute job frames and runs commands, queues replies, and
//     either hands off to the write stage (writeSet) or, with nothing to
//     send, returns the fd to the reactor (epollSet) rearmed for reads.
//  5. The write job drains replies. A short write leaves the fd in
//     writeSet rearmed for writability; a full drain routes back to
//     execute (unparsed bytes pending) or to the reactor.
//  6. Teardown removes the fd from every index, closes it, and flips the
//     phase to closing so any in-flight job backs out on its next mutex
//     acquisition.
//
// # Ownership and Index Sets
//
// Exactly one party owns a connection at any instant: the reactor (fd in
// epollSet), a read or execute job (fd in processingSet), or a write job
// (fd in writeSet). The three sets are disjoint; moves between them happen
// with both set locks held so no observer can see an fd in limbo or in two
// sets. One-shot registration means the reactor cannot deliver a second
// event while a stage owns the fd, so per-connection serialization needs no
// scheduling lock: the connection mutex guards data, never ownership.
//
// A move returns false when the fd has already left the source set, which
// means a teardown won the race; the caller must not dispatch. This is why
// the reactor checks set membership before submitting a job rather than
// trusting the event alone.
//
// allSockets holds the canonical reference to each connection; index sets
// hold bare fds. A job still in flight after teardown keeps an ordinary
// pointer and discovers the teardown by observing the closing phase under
// the connection mutex. The garbage collector handles the rest: no
// reference counting, no use-after-free, and a reused fd number is harmless
// because the stale job holds the old conn whose phase is already closing.
//
// # Lock Hierarchy
//
// Locks are always acquired downward through this order and released in
// reverse:
//
//  1. allSocketsMtx
//  2. conn.mu
//  3. epollSetMtx
//  4. writeSetMtx
//  5. processingSetMtx
//  6. shard storage lock
//
// Consequences written into the code:
//   - removeSocket releases allSocketsMtx before touching set locks and
//     takes conn.mu last.
//   - Stage jobs holding conn.mu may perform set moves (2 → 3/4/5) and
//     run commands (2 → 6).
//   - Stage jobs must release conn.mu before calling removeSocket, which
//     starts back at level 1.
//
// Worked example, the teardown race: a write job holds conn.mu draining
// replies while the reactor sees a hangup on the same fd and calls
// removeSocket. Teardown deletes the fd from allSockets and the index sets
// without needing conn.mu, then blocks acquiring conn.mu to flip the phase.
// The write job finishes its drain, tries to move the fd back to the epoll
// set, finds it gone (move returns false), and returns. Teardown then takes
// the mutex, marks the connection closing, and closes the fd. At no point
// did either side hold two conflicting locks, and the fd was never closed
// under an active I/O loop.
//
// # Backpressure
//
// Stage queues are unbounded; memory is bounded per connection instead. The
// input and output buffers are capped (default 16 MiB each) and a
// connection exceeding a cap is dropped. Because registration is one-shot,
// a connection with a slow execute or write stage generates no further read
// events until its pipeline drains, which is the natural brake on a single
// fast producer.
//
// The execute stage additionally bounds how many pipelined frames it runs
// per job (32) before yielding through the write stage, so one chatty
// connection cannot pin a worker while others wait in the queue.
//
// # Failure Scenarios and Recovery
//
// Transport errors (read/write failure, EOF):
//   - Connection torn down with no reply
//   - A peer that half-closes mid-request gets no partial answer
//
// Framing errors (malformed bytes):
//   - "-ERR protocol error" is queued
//   - The reply drains, then the connection closes
//   - The stream cannot be resynchronized after garbage, so staying open
//     would only misparse everything that follows
//
// Application errors (unknown verb, bad arity, wrong argument types):
//   - Error reply, connection stays open
//   - The byte stream is still well-framed, so later commands are fine
//
// Resource errors (buffer cap exceeded):
//   - Logged, connection torn down, server unaffected
//
// Startup errors (bind/listen/epoll creation):
//   - Returned from New; the process should treat them as fatal
//
// All non-fatal errors stay localized to one connection: nothing a client
// sends can corrupt a shard or another connection's stream. Teardown is
// idempotent, so racing teardown paths (reactor hangup versus a stage
// error versus shutdown) are harmless.
//
// # Performance Characteristics
//
// Operation costs:
//   - Readiness dispatch: O(1) map lookup plus one set move per event
//   - Command execution: O(key length) hash plus one shard map operation
//   - Reply encoding: O(reply size) append into the output buffer
//   - Input compaction: amortized O(1) per byte (copy only after 16 KiB
//     or half the buffer is consumed)
//
// Scalability:
//   - One reactor thread regardless of connection count
//   - Worker threads fixed per stage (default 8), independent of load
//   - Shard count bounds write parallelism across the keyspace
//   - Per-connection memory is two buffers plus ~200 bytes of state
//
// # Configuration
//
// All tunables arrive through Config; zero values take defaults:
//   - Listen: TCP listen address (":6379")
//   - NumShards: keyspace partitions (10)
//   - Workers: threads per stage pool (8)
//   - MaxEvents: readiness events decoded per reactor pass (10)
//   - BufferCap: per-connection buffer bound (16 MiB)
//
// # Usage Example
//
//	cfg := server.Config{Listen: ":6379", NumShards: 10}
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatalf("startup: %v", err)
//	}
//	srv.Start()
//
//	// ... serve until a shutdown signal ...
//
//	srv.Stop()
//	stats := srv.Stats()
//	log.Printf("served %d gets, %d sets", stats.Ops.Gets, stats.Ops.Sets)
//
// # Monitoring and Observability
//
// Orchestrator.Stats aggregates a consistent-enough snapshot for logs and
// dashboards:
//   - Connections: live client count (allSockets size)
//   - Keys: total stored keys across shards
//   - Ops: summed get/set/del counters
//   - Shards: per-shard key and byte counts for skew detection
//
// Useful derived signals:
//   - server_connections (gauge, from Stats.Connections)
//   - server_ops_total{op="get|set|del"} (counter, from Stats.Ops)
//   - server_shard_keys{shard="N"} (gauge, for hot-shard detection)
//
// # Limitations and Future Work
//
// Current limitations:
//   - IPv4 listener only
//   - No per-request timeouts; a connection may sit idle forever
//   - Stage pools share nothing across stages (no work stealing)
//   - Stats are point-in-time, not monotonic exports
//
// Future work:
//   - Idle-connection reaping on a timer wheel
//   - Adaptive batch sizing in the execute stage
//   - Registered-buffer reads to cut per-pass allocations
//   - TLS support on the acceptor path
//
// # See Also
//
// Related packages:
//   - internal/resp: wire-format parsing and encoding
//   - internal/shard: the partitioned engine the execute stage runs against
//   - internal/pool: the worker pools behind the three stages
package server
