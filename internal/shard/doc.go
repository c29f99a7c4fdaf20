// Package shard implements the partitioned key-value engine: a fixed number
// of independent shards, each pairing a storage backend with operation
// counters, and a Router that maps every key to exactly one shard.
//
// # Overview
//
// Sharding exists so that writes on unrelated keys never contend on one
// lock. Each shard owns a disjoint slice of the keyspace, selected by a
// stable FNV-1a hash of the key modulo the shard count. The engine
// supports only single-key commands, so no operation ever holds two shard
// locks; there is no lock-ordering concern between shards and no
// cross-shard atomicity.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│              Router                 │
//	├─────────────────────────────────────┤
//	│  shards: [N]*Shard (immutable)      │
//	│  Partition: fnv1a(key) mod N        │
//	├─────────────────────────────────────┤
//	│  Key → Hash → Shard                 │
//	│  "user:123" → 0x1a2b3c4d → 5        │
//	└─────────────────────────────────────┘
//	        │
//	        ▼
//	┌──────────┐ ┌──────────┐     ┌──────────┐
//	│ Shard 0  │ │ Shard 1  │ ... │ Shard N-1│
//	│ store    │ │ store    │     │ store    │
//	│ counters │ │ counters │     │ counters │
//	└──────────┘ └──────────┘     └──────────┘
//
// # Core Components
//
// Router: Key placement
//   - Owns the fixed shard slice, built once at construction
//   - Partition is pure computation; no locks, no shared state
//   - ShardFor combines hash and lookup for the common path
//
// Shard: One partition
//   - Wraps a storage.Store with atomic operation counters
//   - Exposes the same Get/Set/Delete surface the store has
//   - Reports per-shard statistics for skew detection
//
// # Key Space Partitioning
//
// The mapping is partition(key) = fnv1a(key) mod N:
//   - FNV-1a is fast, non-cryptographic, and distributes short keys well
//   - Deterministic: the same key always lands on the same shard
//   - A key is present in at most one shard, the one its hash selects
//
// N is fixed for the life of the process. Changing it changes the mapping
// of essentially every key, so a different shard count on restart means an
// effectively empty store. Correctness is independent of N; it only tunes
// parallelism. Ten is a reasonable default for a single process: enough
// that eight workers rarely collide on a shard lock, small enough that
// per-shard overhead is negligible.
//
// # Operations
//
// Get: Read a value
//   - Increments the shard's get counter (atomic, off the lock)
//   - Delegates to the store under its shared lock
//
// Set: Store or replace a value
//   - Increments the set counter
//   - Always replaces; reports whether a prior value existed
//
// Delete: Remove a key
//   - Increments the delete counter
//   - Reports whether a key was actually removed; deleting an absent
//     key is an ordinary zero, not an error
//
// ListKeys: Sorted key listing for debugging and inspection
//
// # Concurrency Model
//
// Two independent mechanisms:
//   - Storage locking: each shard's store serializes its own writes, so
//     writes to the same key are linearizable per shard
//   - Counters: plain atomic increments, never inside the storage lock
//
// The router itself is immutable after construction and needs no lock.
// Commands on keys in different shards proceed fully in parallel; commands
// on keys in the same shard serialize only for the duration of one map
// operation.
//
// # Performance Characteristics
//
//   - Partition: O(key length), typically under 100ns for short keys
//   - Get/Set: one map operation plus one clone; Delete: one map
//     operation (the key hash is computed by the Router)
//   - GetStats: O(shard keys) for the byte count; monitoring-frequency
//   - ListKeys: O(n log n) for the sort; debugging-frequency
//
// Contention scales with the ratio of workers to shards: with W workers
// and N shards under a uniform keyspace, the chance two concurrent writes
// collide on a shard is roughly W/N.
//
// # Monitoring and Metrics
//
// Per-shard signals from GetStats and Info:
//   - shard_ops_total{shard="N",op="get|set|del"}
//   - shard_keys{shard="N"}
//   - shard_bytes{shard="N"}
//
// A shard whose key count or op rate diverges from its peers indicates a
// hot keyspace region; with hash placement that usually means one hot key
// rather than a bad hash.
//
// # Usage Example
//
//	router, err := shard.NewRouter(10)
//	if err != nil {
//	    log.Fatalf("router: %v", err)
//	}
//
//	// Route and operate
//	s := router.ShardFor("user:123")
//	s.Set("user:123", resp.NewBulkString([]byte("alice")))
//
//	if value, found := s.Get("user:123"); found {
//	    fmt.Printf("user:123 = %s\n", value.Str)
//	}
//
//	// Inspect distribution
//	for _, s := range router.Shards() {
//	    info := s.Info()
//	    fmt.Printf("shard %d: %d keys, %d bytes\n",
//	        info.ID, info.KeyCount, info.ByteSize)
//	}
//
// # Testing
//
// The package test suite covers:
//   - Partition stability, range, and spread over many keys
//   - The one-shard-per-key placement property
//   - Counter accuracy under concurrent load
//   - Facade semantics (existence reporting, sorted listing)
//
// Running tests:
//
//	go test ./internal/shard/... -cover
//	go test -race ./internal/shard/...
//
// # Limitations and Future Work
//
// Current limitations:
//   - Shard count fixed at construction; no online resharding
//   - No replicas; a shard is a single in-memory copy
//   - Counters are global per shard, not windowed rates
//
// Future work:
//   - Consistent hashing to make N changeable with bounded key movement
//   - Per-shard hot-key sampling for skew diagnosis
//   - Windowed op-rate counters for dashboards
//
// # See Also
//
// Related packages:
//   - internal/storage: the store each shard wraps
//   - internal/server: the execute stage that routes commands here
package shard
