package categorizer

import (
	"sync"
)

// cacheKey identifies a resolved category by its normalized names. A
// structured key avoids the collisions a delimiter-joined string would have
// when names contain the delimiter. Parent is empty for top-level lookups.
type cacheKey struct {
	Parent string
	Name   string
}

// MemoryCache is a simple in-memory category cache. It is unbounded for
// the life of one Categorizer and tolerates staleness by
// existence-check-and-evict rather than invalidation messages.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[cacheKey]string
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		store: make(map[cacheKey]string),
	}
}

// Get retrieves a cached category id
func (c *MemoryCache) Get(key cacheKey) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, found := c.store[key]
	return value, found
}

// Set stores a category id
func (c *MemoryCache) Set(key cacheKey, categoryID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[key] = categoryID
}

// Delete evicts a stale entry
func (c *MemoryCache) Delete(key cacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.store, key)
}

// Len returns the number of cached entries
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.store)
}
