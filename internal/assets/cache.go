package assets

import (
	"container/list"
	"sync"
)

// Cache keeps fetched bytes keyed by source. When a byte limit is set the
// least recently used entries are evicted to stay under it.
type Cache struct {
	mu    sync.Mutex
	limit int
	size  int
	order *list.List // front is most recently used
	index map[string]*list.Element

	hits, misses, evictions int
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewCache creates a cache without a size limit.
func NewCache() *Cache {
	return NewBoundedCache(0)
}

// NewBoundedCache creates a cache holding at most limit bytes.
// A limit of zero or less means unbounded.
func NewBoundedCache(limit int) *Cache {
	if limit < 0 {
		limit = 0
	}
	return &Cache{
		limit: limit,
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Get returns the bytes stored under key and marks them recently used.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).data, true
}

// Set stores data under key. Data larger than the whole limit is not kept.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remove(key)
	if c.limit > 0 && len(data) > c.limit {
		return
	}
	c.index[key] = c.order.PushFront(&cacheEntry{key: key, data: data})
	c.size += len(data)

	for c.limit > 0 && c.size > c.limit {
		oldest := c.order.Back()
		c.remove(oldest.Value.(*cacheEntry).key)
		c.evictions++
	}
}

// Delete drops key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key)
}

func (c *Cache) remove(key string) {
	el, ok := c.index[key]
	if !ok {
		return
	}
	c.order.Remove(el)
	delete(c.index, key)
	c.size -= len(el.Value.(*cacheEntry).data)
}

// Clear drops every entry and zeroes the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.index = make(map[string]*list.Element)
	c.size = 0
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Size returns the number of cached bytes.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns lookup hits and misses since the last Clear.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Evictions returns how many entries the byte limit pushed out.
func (c *Cache) Evictions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}
