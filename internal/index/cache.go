package index

import (
	"sync"
	"sync/atomic"
)

// Entry is one directory entry.
type Entry struct {
	Name  string
	IsDir bool
}

// Cache memoizes directory listings by path. It is safe for concurrent use
// and is only invalidated explicitly.
type Cache struct {
	mu     sync.RWMutex
	dirs   map[string][]Entry
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{dirs: make(map[string][]Entry)}
}

// Get returns the cached listing of dir, calling load on a miss. Load
// errors are not cached. A nil cache always calls load.
func (c *Cache) Get(dir string, load func(string) ([]Entry, error)) ([]Entry, error) {
	if c == nil {
		return load(dir)
	}

	c.mu.RLock()
	entries, ok := c.dirs[dir]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return entries, nil
	}

	c.misses.Add(1)
	entries, err := load(dir)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.dirs[dir] = entries
	c.mu.Unlock()
	return entries, nil
}

// Invalidate drops the listing of one directory.
func (c *Cache) Invalidate(dir string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.dirs, dir)
	c.mu.Unlock()
}

// Reset drops every listing and zeroes the counters.
func (c *Cache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.dirs = make(map[string][]Entry)
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Len returns the number of cached directories.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dirs)
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
