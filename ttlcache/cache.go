// Package ttlcache provides a typed cache whose entries are only visible for a fixed duration after they were set
package ttlcache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const defaultCleanupInterval = time.Second

type Cache[T any] struct {
	ttl time.Duration
	c   *gocache.Cache
}

// New creates a cache where every entry expires ttl after it was last set.
func New[T any](ttl time.Duration) *Cache[T] {
	cleanup := defaultCleanupInterval
	if ttl > 0 && ttl < cleanup {
		cleanup = ttl
	}
	return &Cache[T]{
		ttl: ttl,
		c:   gocache.New(ttl, cleanup),
	}
}

func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Set overwrites any prior entry for k. With a non-positive ttl nothing is stored.
func (c *Cache[T]) Set(k string, v T) {
	if c.ttl <= 0 {
		return
	}
	c.c.Set(k, v, c.ttl)
}

// Get returns the entry for k. Expired entries are reported as absent even if they were not cleaned up yet.
func (c *Cache[T]) Get(k string) (T, bool) { //nolint:ireturn
	v, ok := c.c.Get(k)
	if !ok {
		var rt T
		return rt, false
	}
	//nolint:forcetypeassert
	return v.(T), true
}

func (c *Cache[T]) Len() int {
	return c.c.ItemCount()
}
