package llm

import (
	"container/list"
	"sync"
)

// Cache is a thread-safe, bounded LRU cache for completion results. It is an
// explicit, injected dependency of callers that repeat identical searches
// within a batch; capacity is a hard cap and the least recently used entry is
// evicted on overflow.
type Cache struct {
	entries  map[string]*list.Element
	order    *list.List
	capacity int
	mu       sync.Mutex
}

type lruEntry struct {
	key   string
	value string
}

// NewCache creates a cache holding at most capacity entries.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 256
	}
	return &Cache{
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
	}
}

// Get retrieves a cached value and marks it most recently used.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruEntry).value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*lruEntry).value = value
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*lruEntry).key)
		}
	}

	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value})
}

// Len returns the number of entries in the cache.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
