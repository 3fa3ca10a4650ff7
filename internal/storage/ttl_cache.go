// Package storage provides database connections, repositories and caches.
package storage

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// TTLCache is a bounded, thread-safe key-value cache with per-entry TTL.
// Expired entries are dropped lazily on access and eagerly when the cache
// is full; when no expired entry can be reclaimed the entry closest to
// expiry is evicted to stay within capacity.
type TTLCache struct {
	mu       sync.RWMutex
	entries  map[string]cacheEntry
	capacity int
	ttl      time.Duration
}

// NewTTLCache creates a cache holding at most capacity entries, each valid
// for the given default TTL.
func NewTTLCache(capacity int, ttl time.Duration) *TTLCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &TTLCache{
		entries:  make(map[string]cacheEntry, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get returns the cached value for key, treating expired entries as misses.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have refreshed the entry.
		if current, still := c.entries[key]; still && time.Now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key with the default TTL.
func (c *TTLCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with an explicit TTL.
func (c *TTLCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.reclaimLocked(now)
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: now.Add(ttl)}
}

// Delete removes a key from the cache.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of entries currently held, including any expired
// entries not yet reclaimed.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// reclaimLocked frees at least one slot: first drops all expired entries,
// then falls back to evicting the entry closest to expiry.
func (c *TTLCache) reclaimLocked(now time.Time) {
	removed := false
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed = true
		}
	}
	if removed {
		return
	}

	var victim string
	var soonest time.Time
	for k, e := range c.entries {
		if victim == "" || e.expiresAt.Before(soonest) {
			victim = k
			soonest = e.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}
