package marketdata

import (
	"sync"
	"time"
)

// memoryEntry holds a parsed value and its expiry in the in-process tier.
type memoryEntry struct {
	value     interface{}
	expiresAt time.Time
}

// MemoryCache is the fastest-path tier: an in-process key -> (value, expiry)
// table rebuilt from the durable store or the network on miss. Entries live
// for the process lifetime and are only ever overwritten, never deleted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryCache creates an empty memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
	}
}

// Get returns the value for a key if an unexpired entry exists.
func (m *MemoryCache) Get(key Key) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key.String()]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// GetStale returns the value and expiry for a key regardless of expiration.
// The facade uses this to reuse an already-decoded stale value instead of
// re-parsing the durable payload on every call.
func (m *MemoryCache) GetStale(key Key) (interface{}, time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key.String()]
	if !ok {
		return nil, time.Time{}, false
	}
	return entry.value, entry.expiresAt, true
}

// Set stores or overwrites the entry for a key.
func (m *MemoryCache) Set(key Key, value interface{}, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key.String()] = memoryEntry{value: value, expiresAt: expiresAt}
}

// Len returns the number of entries (fresh and stale).
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}
