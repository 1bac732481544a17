// Package cache provides a bounded, time-expired in-process cache.
// Entries are optimizations only, never a source of truth: eviction or
// expiry must always be safe for callers.
package cache

import (
	"sync"
	"time"
)

// TTL is a bounded cache with per-entry expiry. The clock is injectable so
// tests control time and eviction deterministically.
type TTL[V any] struct {
	mu       sync.Mutex
	entries  map[string]entry[V]
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTL creates a cache holding at most capacity entries, each expiring
// ttl after insertion.
func NewTTL[V any](capacity int, ttl time.Duration) *TTL[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &TTL[V]{
		entries:  make(map[string]entry[V]),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (c *TTL[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the cached value for key if present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. When the cache is full, the entry closest to
// expiry is evicted first.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneExpiredLocked(now)

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
}

// Len reports the number of live entries.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneExpiredLocked(c.now())
	return len(c.entries)
}

func (c *TTL[V]) pruneExpiredLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

func (c *TTL[V]) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
