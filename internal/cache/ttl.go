// Package cache holds the process-owned in-memory state: short-TTL upstream
// caches (spreadsheet rows, vendor tokens) and last-known-good response
// snapshots. Everything here is mutex-guarded; instances are constructed in
// main and injected, never reached as ambient globals.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a thread-safe in-memory cache whose entries expire after a fixed
// duration. A stale read is refreshed lazily by the caller on the next miss;
// there is no background janitor because entry counts here are tiny (one key
// for sheet rows, one per vendor token).
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration

	hits, misses int64
}

// NewTTL creates a TTL cache with the given default entry lifetime.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
	}
}

// Get returns the value for key if present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores value under key with the cache's default TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.SetFor(key, value, c.ttl)
}

// SetFor stores value under key with an explicit lifetime; vendor tokens
// carry their own advertised expiry.
func (c *TTL[V]) SetFor(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
}

// Delete removes key if present.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Stats returns cumulative hit and miss counts.
func (c *TTL[V]) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
