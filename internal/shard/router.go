package shard

import (
	"fmt"
	"hash/fnv"
)

// Router owns the fixed set of shards and maps every key to exactly one of
// them via a stable hash, so that commands on different keys can proceed in
// parallel without any cross-shard locking.
//
// The mapping is partition(key) = fnv1a(key) mod N. N is fixed for the life
// of the process; changing it invalidates the placement of every stored key.
//
// Hashing algorithm:
//   - Uses FNV-1a (Fowler-Noll-Vo) hash function
//   - Fast, non-cryptographic hash with good distribution
//   - Deterministic: same key always maps to same shard
//   - Uniform: keys distribute evenly across shards
//
// Thread Safety:
// The shard slice is immutable after construction and Partition is pure
// computation, so all methods are safe for concurrent use without locking.
type Router struct {
	shards []*Shard // Fixed at construction; index == shard ID
}

// NewRouter creates a router over numShards freshly constructed shards.
//
// The shard count determines the granularity of write parallelism: two
// commands contend on a shard lock only when their keys hash to the same
// shard. Correctness is independent of the count; 10 is a reasonable
// default for a single process.
//
// Parameters:
//   - numShards: Number of shards to create (must be > 0)
//
// Returns:
//   - Initialized Router, or an error for a non-positive count
func NewRouter(numShards int) (*Router, error) {
	if numShards <= 0 {
		return nil, fmt.Errorf("invalid shard count %d, must be > 0", numShards)
	}

	shards := make([]*Shard, numShards)
	for i := range shards {
		shards[i] = NewShard(i)
	}
	return &Router{shards: shards}, nil
}

// Partition returns the shard ID that owns key, in [0, NumShards).
// Pure computation with no shared state access.
func (r *Router) Partition(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32()) % len(r.shards)
}

// ShardFor returns the shard that owns key.
func (r *Router) ShardFor(key string) *Shard {
	return r.shards[r.Partition(key)]
}

// NumShards returns the total number of shards.
func (r *Router) NumShards() int {
	return len(r.shards)
}

// Shards returns the underlying shard slice for stats aggregation.
// Callers must not mutate it.
func (r *Router) Shards() []*Shard {
	return r.shards
}
