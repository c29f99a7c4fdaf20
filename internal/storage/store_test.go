package storage

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/dreamware/kupe/internal/resp"
)

// TestMemoryStore tests the in-memory store implementation
func TestMemoryStore(t *testing.T) {
	t.Run("new store is empty", func(t *testing.T) {
		store := NewMemoryStore()

		// List should return empty slice
		keys := store.List()
		if len(keys) != 0 {
			t.Errorf("Expected empty store, got %d keys", len(keys))
		}

		// Get should report absence
		_, found := store.Get("nonexistent")
		if found {
			t.Error("Expected key to be absent")
		}
	})

	t.Run("set and get values", func(t *testing.T) {
		store := NewMemoryStore()

		// Set a value
		existed := store.Set("key1", resp.NewBulkString([]byte("value1")))
		if existed {
			t.Error("Set on fresh key reported a prior value")
		}

		// Get the value back
		value, found := store.Get("key1")
		if !found {
			t.Fatal("Expected key to be present")
		}

		// Verify the value
		if !bytes.Equal(value.Str, []byte("value1")) {
			t.Errorf("Expected 'value1', got %s", string(value.Str))
		}
	})

	t.Run("overwrite existing key", func(t *testing.T) {
		store := NewMemoryStore()

		// Set initial value
		store.Set("key1", resp.NewBulkString([]byte("value1")))

		// Overwrite with new value, prior existence reported
		existed := store.Set("key1", resp.NewBulkString([]byte("value2")))
		if !existed {
			t.Error("Overwrite did not report prior value")
		}

		// Get should return new value
		value, found := store.Get("key1")
		if !found {
			t.Fatal("Expected key to be present")
		}

		if !bytes.Equal(value.Str, []byte("value2")) {
			t.Errorf("Expected 'value2', got %s", string(value.Str))
		}
	})

	t.Run("delete values", func(t *testing.T) {
		store := NewMemoryStore()

		// Set then delete
		store.Set("key1", resp.NewBulkString([]byte("value1")))
		removed := store.Delete("key1")
		if !removed {
			t.Error("Delete of present key reported no removal")
		}

		// Get should report absence
		if _, found := store.Get("key1"); found {
			t.Error("Expected key to be absent after delete")
		}

		// List should be empty
		keys := store.List()
		if len(keys) != 0 {
			t.Errorf("Expected empty store after delete, got %d keys", len(keys))
		}
	})

	t.Run("delete non-existent key", func(t *testing.T) {
		store := NewMemoryStore()

		// Delete non-existent key reports no removal, no error
		if removed := store.Delete("nonexistent"); removed {
			t.Error("Delete of absent key reported a removal")
		}
	})

	t.Run("empty and binary values", func(t *testing.T) {
		store := NewMemoryStore()

		// Empty value is distinct from absent key
		store.Set("empty", resp.NewBulkString(nil))
		value, found := store.Get("empty")
		if !found {
			t.Fatal("Expected empty-valued key to be present")
		}
		if len(value.Str) != 0 {
			t.Errorf("Expected empty payload, got %q", value.Str)
		}

		// Binary value survives intact
		blob := []byte{0x00, 0x0d, 0x0a, 0xff, 0xfe}
		store.Set("blob", resp.NewBulkString(blob))
		value, _ = store.Get("blob")
		if !bytes.Equal(value.Str, blob) {
			t.Errorf("Binary value corrupted: %x", value.Str)
		}
	})

	t.Run("stored value is isolated from caller buffer", func(t *testing.T) {
		store := NewMemoryStore()

		buf := []byte("mutable")
		store.Set("key1", resp.NewBulkString(buf))

		// Scribble over the caller's buffer, as connection-buffer
		// compaction would
		for i := range buf {
			buf[i] = 'X'
		}

		value, _ := store.Get("key1")
		if !bytes.Equal(value.Str, []byte("mutable")) {
			t.Errorf("Stored value aliases caller buffer: %q", value.Str)
		}
	})

	t.Run("stats", func(t *testing.T) {
		store := NewMemoryStore()

		store.Set("a", resp.NewBulkString([]byte("12345")))
		store.Set("b", resp.NewBulkString([]byte("678")))

		stats := store.Stats()
		if stats.Keys != 2 {
			t.Errorf("Expected 2 keys, got %d", stats.Keys)
		}
		if stats.Bytes != 8 {
			t.Errorf("Expected 8 bytes, got %d", stats.Bytes)
		}
	})
}

// TestMemoryStoreConcurrency exercises the store from many goroutines to
// catch races under -race
func TestMemoryStoreConcurrency(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup

	// Concurrent writers on overlapping keys
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key%d", j%10)
				store.Set(key, resp.NewBulkString([]byte(fmt.Sprintf("w%d-%d", id, j))))
			}
		}(i)
	}

	// Concurrent readers and deleters
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key%d", j%10)
				store.Get(key)
				if j%17 == 0 {
					store.Delete(key)
				}
				store.Stats()
			}
		}()
	}

	wg.Wait()

	// Every surviving value must be intact (one of the written values,
	// never torn)
	for _, key := range store.List() {
		value, found := store.Get(key)
		if !found {
			continue
		}
		if len(value.Str) == 0 || value.Str[0] != 'w' {
			t.Errorf("Torn or corrupt value for %s: %q", key, value.Str)
		}
	}
}
