// Package storage defines the abstract storage interface and provides the
// in-memory implementation backing each shard of the key-value engine.
//
// # Overview
//
// The storage package is the innermost layer of the server: every command
// the execute stage runs ends as a single Get, Set or Delete against one
// store. The interface keeps the engine pluggable while the only shipping
// implementation, MemoryStore, is a map guarded by a sync.RWMutex.
//
// # Architecture
//
// The package sits at the bottom of a strict layering:
//
//	┌─────────────────────────────────────┐
//	│           Execute Stage             │
//	│        (command dispatch)           │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│         Shard / Router              │
//	│   partition(key) → one store        │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│        Storage Interface            │
//	│     Get / Set / Delete / Stats      │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│          MemoryStore                │
//	│   map[string]resp.Value + RWMutex   │
//	└─────────────────────────────────────┘
//
// Nothing above the interface knows which backend it is talking to, and
// nothing below it knows about connections, frames, or commands.
//
// # Core Interface
//
// Store: Basic key-value storage operations
//   - Get(key) - Retrieve a value and whether it exists
//   - Set(key, value) - Store or replace, reporting prior existence
//   - Delete(key) - Remove, reporting whether anything was removed
//   - List() - All keys, order unspecified
//   - Stats() - Key and byte counts
//
// Existence is reported as a boolean rather than an error because absence
// is an ordinary outcome here: a GET of a missing key is a nil reply, a
// DEL of a missing key counts zero, and neither is exceptional.
//
// # Implementations
//
// MemoryStore: In-memory storage with sync.RWMutex
//   - Fast operations (nanosecond latency)
//   - No persistence (data lost on restart)
//   - Thread-safe with a single lock per store; sharding above this
//     layer provides the parallelism
//
// Possible future backends behind the same interface:
//
// Append-only log store (Future): crash recovery by replay
//   - Sequential writes, periodic compaction
//   - Restart rebuilds the map from the log tail
//
// Mapped-file store (Future): datasets larger than memory
//   - OS page cache does the caching
//   - Values referenced by offset instead of held on heap
//
// # Semantics
//
// Values are opaque resp.Value trees; the store never interprets them
// beyond the payload-size accounting in Stats. Set always replaces and
// reports whether a prior value existed. Delete of an absent key reports
// false and is not an error. The same key set twice holds only the second
// value; there is no versioning and no tombstone.
//
// # Concurrency and Thread Safety
//
// All operations are safe for concurrent use.
//
// Locking strategy:
//   - Get takes the shared lock; reads run in parallel
//   - Set and Delete take the exclusive lock
//   - Every critical section contains only the map operation itself
//   - Value clones are taken outside the lock (before it in Set, after
//     it in Get), so no allocation proportional to user data happens
//     while the lock is held
//
// Consistency guarantees:
//   - Writes to one key are linearizable: the exclusive lock serializes
//     them, and a reader sees either the old or the new value, never a
//     mixture
//   - No guarantees across multiple keys; there are no transactions
//   - List and Stats observe a single consistent snapshot of the map
//
// Worked example, the torn-value question: two connections race SET k v1
// against SET k v2 while a third runs GET k. Each Set clones its value
// before taking the lock, stores the clone under the lock, and each Get
// reads the stored value under the read lock and clones it after releasing
// the lock; stored values are never mutated in place. The reader gets a
// complete copy of whichever clone was stored last; no code path ever
// hands out a value that a concurrent writer can still mutate.
//
// # Memory Management
//
// MemoryStore characteristics:
//   - All data in heap memory, no eviction
//   - Every stored value is an independent deep copy; connection buffers
//     can be compacted or reused freely after Set returns
//   - Every returned value is likewise a copy; callers can scribble on
//     it without affecting the store
//   - Roughly 50 bytes of map overhead per entry on top of key and
//     payload bytes
//
// The copy-in/copy-out discipline trades throughput for safety: it makes
// aliasing bugs structurally impossible at the cost of one allocation per
// operation. Workloads dominated by large values feel this first; a
// zero-copy read path would need reference counting or immutability
// guarantees this package deliberately avoids.
//
// # Error Handling
//
// The interface has no error returns. Every operation on an in-memory map
// succeeds; the interesting outcomes (key absent, key replaced, key
// removed) are booleans, and resource exhaustion surfaces as allocation
// failure far above this layer. A future persistent backend would extend
// the interface with error returns where I/O can actually fail.
//
// # Usage Examples
//
//	// Creating a store
//	store := storage.NewMemoryStore()
//
//	// Basic operations
//	existed := store.Set("user:123", resp.NewBulkString([]byte(`{"name":"Alice"}`)))
//	if existed {
//	    log.Println("replaced an earlier value")
//	}
//
//	value, found := store.Get("user:123")
//	if !found {
//	    log.Println("user not found")
//	}
//
//	if removed := store.Delete("user:123"); removed {
//	    log.Println("user deleted")
//	}
//
//	// Iteration
//	for _, key := range store.List() {
//	    value, _ := store.Get(key)
//	    fmt.Printf("%s: %d bytes\n", key, value.ByteSize())
//	}
//
//	// Accounting
//	stats := store.Stats()
//	fmt.Printf("%d keys, %d bytes\n", stats.Keys, stats.Bytes)
//
// # Testing
//
// The package test suite covers:
//   - Interface semantics (set/get/delete, overwrite reporting,
//     idempotent delete)
//   - Value isolation (stored values survive mutation of the caller's
//     buffer)
//   - Binary safety (values containing CR, LF, and NUL round-trip)
//   - Concurrent readers, writers, and deleters under -race
//
// Running tests:
//
//	go test ./internal/storage/... -cover
//	go test -race ./internal/storage/...
//
// # Metrics and Monitoring
//
// Storage-level signals worth exporting:
//   - storage_keys_total (from Stats.Keys)
//   - storage_bytes_total (from Stats.Bytes)
//   - storage_ops_total{op="get|set|delete"} (counted one layer up,
//     in internal/shard)
//
// Stats iterates the whole map under the read lock, so it is a
// monitoring-frequency call, not a per-request one.
//
// # Future Enhancements
//
// Near-term:
//   - Size hints so Stats can run without a full scan
//   - Prefix-filtered List for namespaced keyspaces
//
// Medium-term:
//   - TTL support with lazy expiry on read
//   - Batch Set/Delete to amortize lock acquisition
//
// Long-term:
//   - Pluggable persistent backends behind the same interface
//   - Copy-on-write snapshots for consistent iteration
//
// # Best Practices
//
// Key design:
//   - Use hierarchical keys (user:123:profile)
//   - Keep keys reasonably short; they are hashed per command and held
//     in full per entry
//
// Value format:
//   - The store treats values as opaque; serialize consistently above it
//   - Large values cost a full copy on every read and write here
//
// Resource management:
//   - Nothing to close; the store is plain memory
//   - Bound value sizes at the protocol layer, not here
//
// # See Also
//
// Related packages:
//   - internal/shard: wraps stores with operation counters and routes
//     keys to them
//   - internal/resp: the value type stored here
//   - internal/server: the execute stage that drives all operations
package storage
