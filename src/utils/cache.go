package utils

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value      V
	expiration time.Time
}

// Cache is a keyed in-memory cache where every entry expires after a fixed TTL.
type Cache[K comparable, V any] struct {
	entries map[K]cacheEntry[V]
	ttl     time.Duration
	now     func() time.Time
	mutex   sync.RWMutex
}

// NewCache initializes an empty cache whose entries live for ttl.
func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]cacheEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Set stores value under key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = cacheEntry[V]{value: value, expiration: c.now().Add(c.ttl)}
}

// Get retrieves the cached value if it has not expired yet.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiration) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Clear removes every cached value.
func (c *Cache[K, V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[K]cacheEntry[V])
}
