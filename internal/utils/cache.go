package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheItem[V any] struct {
	data      V
	expiresAt time.Time
}

// TTLCache is a small in-memory LRU with per-entry expiry. It fronts the
// on-disk snapshot store for hot reads and backs the RSS detail map.
type TTLCache[V any] struct {
	lruCache *lru.Cache[string, cacheItem[V]]
}

// NewTTLCache creates a cache holding at most size entries.
func NewTTLCache[V any](size int) (*TTLCache[V], error) {
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[V]{lruCache: l}, nil
}

// Set stores a value. A ttl of zero or less means no expiry.
func (c *TTLCache[V]) Set(key string, data V, ttl time.Duration) {
	item := cacheItem[V]{data: data}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	c.lruCache.Add(key, item)
}

// Get returns the value if present and unexpired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.lruCache.Get(key)
	if !ok {
		return zero, false
	}
	if !val.expiresAt.IsZero() && time.Now().After(val.expiresAt) {
		c.lruCache.Remove(key)
		return zero, false
	}
	return val.data, true
}

// Delete removes a key.
func (c *TTLCache[V]) Delete(key string) {
	c.lruCache.Remove(key)
}

// Purge drops every entry.
func (c *TTLCache[V]) Purge() {
	c.lruCache.Purge()
}
