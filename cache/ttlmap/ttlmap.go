// Package ttlmap implements a small in-memory key-value cache with a fixed
// expiry window. It is a performance optimization, never a correctness
// mechanism: consumers must behave identically whether an entry is fresh,
// stale-and-therefore-absent, or missing.
package ttlmap

import (
	"sync"
	"time"
)

// DefaultTTL is the expiry window used when none is configured.
const DefaultTTL = 10 * time.Second

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a mutex-guarded map from string keys to values of type V.
// Entries older than the TTL window are treated as absent.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry[V]
	now     func() time.Time // overridable in tests
}

// New creates a cache with the given expiry window. A non-positive ttl
// falls back to DefaultTTL.
func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Get returns the cached value for key, if present and within the TTL
// window. Expired entries are removed on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores a value under key, replacing any existing entry.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Len returns the number of entries, including any that have expired but
// not yet been evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
