// Package memory implements the default cache.RequestCache: a plain map
// guarded by a mutex, scoped to one Resolve/Filter call and discarded at
// the end.
package memory

import (
	"sync"

	"rulesengine/cache"
)

// Cache is a mutex-guarded map implementing cache.RequestCache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cache.Entry
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]cache.Entry)}
}

func (c *Cache) Get(key string) (cache.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *Cache) Set(key string, entry cache.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

// Len reports the number of memoized entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
