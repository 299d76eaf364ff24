package profile

import (
	"fmt"
	"runtime"
	"sync"
	"weak"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes one value per profile. Keys are weak, so an entry goes away
// once its profile is no longer referenced anywhere else.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[weak.Pointer[Profile]]V
	group   singleflight.Group
}

// NewCache creates an empty cache.
func NewCache[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[weak.Pointer[Profile]]V)}
}

// Get returns the cached value for p, building it with build on a miss.
// Concurrent misses for the same profile share a single build.
func (c *Cache[V]) Get(p *Profile, build func(*Profile) (V, error)) (V, error) {
	wp := weak.Make(p)

	c.mu.RLock()
	v, ok := c.entries[wp]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := c.group.Do(fmt.Sprintf("%p", p), func() (any, error) {
		c.mu.RLock()
		v, ok := c.entries[wp]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		built, err := build(p)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		_, existed := c.entries[wp]
		c.entries[wp] = built
		c.mu.Unlock()
		if !existed {
			runtime.AddCleanup(p, evictEntry[V], cacheEntry[V]{cache: weak.Make(c), key: wp})
		}
		return built, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Len reports the number of live entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cacheEntry names one entry for the profile cleanup. The cache is held
// weakly so that a long-lived profile does not pin a discarded cache.
type cacheEntry[V any] struct {
	cache weak.Pointer[Cache[V]]
	key   weak.Pointer[Profile]
}

func evictEntry[V any](e cacheEntry[V]) {
	if c := e.cache.Value(); c != nil {
		c.evict(e.key)
	}
}

func (c *Cache[V]) evict(wp weak.Pointer[Profile]) {
	c.mu.Lock()
	delete(c.entries, wp)
	c.mu.Unlock()
}
