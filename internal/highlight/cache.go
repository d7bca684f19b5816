package highlight

import (
	"container/list"
	"sync"

	"github.com/google/uuid"

	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
)

type cacheKey struct {
	snapshot uuid.UUID
	span     doctext.Span
}

type cacheEntry struct {
	key    cacheKey
	result Result
}

// Cache keeps recent results per snapshot and requested span. Snapshots are
// immutable, so entries never go stale; they only age out.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[cacheKey]*list.Element
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[cacheKey]*list.Element, capacity),
	}
}

func (c *Cache) Get(id uuid.UUID, span doctext.Span) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[cacheKey{snapshot: id, span: span}]
	if !ok {
		return Result{}, false
	}
	c.ll.MoveToFront(elem)
	return elem.Value.(cacheEntry).result, true
}

func (c *Cache) Set(id uuid.UUID, span doctext.Span, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{snapshot: id, span: span}
	if elem, ok := c.items[key]; ok {
		elem.Value = cacheEntry{key: key, result: result}
		c.ll.MoveToFront(elem)
		return
	}

	elem := c.ll.PushFront(cacheEntry{key: key, result: result})
	c.items[key] = elem

	if c.ll.Len() <= c.capacity {
		return
	}

	back := c.ll.Back()
	if back == nil {
		return
	}
	entry := back.Value.(cacheEntry)
	delete(c.items, entry.key)
	c.ll.Remove(back)
}

// Forget drops every result computed for a snapshot.
func (c *Cache) Forget(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.items {
		if key.snapshot == id {
			c.ll.Remove(elem)
			delete(c.items, key)
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Cached returns the cached result for span or computes and stores it.
func (c *Cache) Cached(id uuid.UUID, span doctext.Span, compute func() Result) Result {
	if r, ok := c.Get(id, span); ok {
		return r
	}
	r := compute()
	c.Set(id, span, r)
	return r
}
