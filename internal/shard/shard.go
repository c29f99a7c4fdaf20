package shard

import (
	"sync/atomic"

	"golang.org/x/exp/slices"

	"github.com/dreamware/kupe/internal/resp"
	"github.com/dreamware/kupe/internal/storage"
)

// Shard represents one independent partition of the keyspace with its own
// storage and lock. A key lives in at most one shard, the one its hash
// selects; see Router.
type Shard struct {
	Store storage.Store // The storage backend for this shard
	Stats *ShardStats   // Operation statistics
	ID    int           // Unique shard identifier
}

// ShardStats tracks operational statistics for a shard
type ShardStats struct {
	Ops     OperationStats     // Operation counts
	Storage storage.StoreStats // Storage statistics
}

// OperationStats tracks operation counts
type OperationStats struct {
	Gets uint64 // Number of get operations
	Sets uint64 // Number of set operations
	Dels uint64 // Number of delete operations
}

// ShardInfo contains metadata about a shard
type ShardInfo struct {
	ID       int // Shard identifier
	KeyCount int // Number of keys
	ByteSize int // Total payload size in bytes
}

// NewShard creates a new shard with in-memory storage
func NewShard(id int) *Shard {
	return &Shard{
		ID:    id,
		Store: storage.NewMemoryStore(),
		Stats: &ShardStats{},
	}
}

// Get retrieves a value from the shard
// Increments get counter for statistics
func (s *Shard) Get(key string) (resp.Value, bool) {
	atomic.AddUint64(&s.Stats.Ops.Gets, 1)
	return s.Store.Get(key)
}

// Set stores a value in the shard and reports whether a prior value existed
// Increments set counter for statistics
func (s *Shard) Set(key string, value resp.Value) bool {
	atomic.AddUint64(&s.Stats.Ops.Sets, 1)
	return s.Store.Set(key, value)
}

// Delete removes a key from the shard and reports whether it was present
// Increments delete counter for statistics
func (s *Shard) Delete(key string) bool {
	atomic.AddUint64(&s.Stats.Ops.Dels, 1)
	return s.Store.Delete(key)
}

// ListKeys returns all keys in the shard in sorted order
func (s *Shard) ListKeys() []string {
	keys := s.Store.List()
	slices.Sort(keys)
	return keys
}

// GetStats returns current shard statistics
func (s *Shard) GetStats() ShardStats {
	// Get storage stats
	storageStats := s.Store.Stats()

	// Return combined stats
	return ShardStats{
		Ops: OperationStats{
			Gets: atomic.LoadUint64(&s.Stats.Ops.Gets),
			Sets: atomic.LoadUint64(&s.Stats.Ops.Sets),
			Dels: atomic.LoadUint64(&s.Stats.Ops.Dels),
		},
		Storage: storageStats,
	}
}

// Info returns metadata about the shard
func (s *Shard) Info() ShardInfo {
	storageStats := s.Store.Stats()

	return ShardInfo{
		ID:       s.ID,
		KeyCount: storageStats.Keys,
		ByteSize: storageStats.Bytes,
	}
}
