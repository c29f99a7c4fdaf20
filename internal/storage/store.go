package storage

import (
	"sync"

	"github.com/dreamware/kupe/internal/resp"
)

// Store defines the interface for key-value storage
// All implementations must be thread-safe for concurrent access
type Store interface {
	// Get retrieves a value by key
	// The second return reports whether the key exists
	Get(key string) (resp.Value, bool)

	// Set stores a value with the given key, overwriting any existing
	// value, and reports whether a prior value existed
	Set(key string, value resp.Value) bool

	// Delete removes a key-value pair and reports whether a key was
	// actually removed
	Delete(key string) bool

	// List returns all keys in the store
	// Order is not guaranteed
	List() []string

	// Stats returns storage statistics
	Stats() StoreStats
}

// StoreStats contains statistics about the store
type StoreStats struct {
	Keys  int // Number of keys
	Bytes int // Total payload size of all values in bytes
}

// MemoryStore implements Store interface with in-memory storage
// Uses sync.RWMutex for thread-safe concurrent access
//
// Values are opaque RESP trees: the store never inspects them beyond the
// payload-size accounting in Stats. Critical sections contain only the map
// operation; value copies are taken before the lock is acquired.
type MemoryStore struct {
	mu   sync.RWMutex          // Protects concurrent access
	data map[string]resp.Value // Key-value storage
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]resp.Value),
	}
}

// Get retrieves a value by key
// Returns a copy of the value to prevent external modification
func (m *MemoryStore) Get(key string) (resp.Value, bool) {
	m.mu.RLock()
	value, exists := m.data[key]
	m.mu.RUnlock()

	if !exists {
		return resp.Value{}, false
	}
	// Return a copy to prevent external modification
	return value.Clone(), true
}

// Set stores a value with the given key and reports whether the key was
// already present
// Makes a copy of the value so the caller's buffers can be reused
func (m *MemoryStore) Set(key string, value resp.Value) bool {
	// Copy outside the critical section; parsed values alias connection
	// buffers that are compacted after dispatch
	stored := value.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.data[key]
	m.data[key] = stored
	return existed
}

// Delete removes a key-value pair and reports whether the key existed
// Deleting an absent key is not an error (idempotent)
func (m *MemoryStore) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.data[key]
	delete(m.data, key)
	return existed
}

// List returns all keys in the store
// Returns a copy of the keys to prevent external modification
func (m *MemoryStore) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys
}

// Stats returns storage statistics
func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totalBytes := 0
	for _, value := range m.data {
		totalBytes += value.ByteSize()
	}

	return StoreStats{
		Keys:  len(m.data),
		Bytes: totalBytes,
	}
}
