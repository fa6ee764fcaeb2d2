// Package cache is a bounded LRU whose misses are filled by a loader, with concurrent
// misses for one key sharing a single load.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Loader produces the value for a key on a cache miss.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Cache holds at most size entries. Failed loads are not cached.
type Cache[K comparable, V any] struct {
	entries *lru.Cache[K, V]
	flight  singleflight.Group
	keyName func(K) string
}

// New creates a cache with room for size entries. keyName renders a key for
// load coalescing and must be unique per key.
func New[K comparable, V any](size int, keyName func(K) string) (*Cache[K, V], error) {
	entries, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}

	return &Cache[K, V]{entries: entries, keyName: keyName}, nil
}

// Get returns the cached value for key or loads it. hit reports whether the value
// was already cached.
func (c *Cache[K, V]) Get(ctx context.Context, key K, load Loader[K, V]) (value V, hit bool, err error) {
	if v, ok := c.entries.Get(key); ok {
		return v, true, nil
	}

	res, err, _ := c.flight.Do(c.keyName(key), func() (any, error) {
		v, err := load(ctx, key)
		if err != nil {
			return nil, err
		}

		c.entries.Add(key, v)

		return v, nil
	})
	if err != nil {
		var zero V

		return zero, false, err
	}

	return res.(V), false, nil
}

// Remove drops key.
func (c *Cache[K, V]) Remove(key K) {
	c.entries.Remove(key)
}

// Purge drops every entry.
func (c *Cache[K, V]) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return c.entries.Len()
}
