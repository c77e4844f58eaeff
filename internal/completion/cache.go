package completion

import (
	"container/list"
	"sync"
	"time"
)

// defaultCacheBound is used when the configured bound is zero or negative.
const defaultCacheBound = 128

// Entry is one cached completion result.
type Entry struct {
	Text       string
	Created    time.Time
	LastAccess time.Time
}

type cacheItem struct {
	fingerprint string
	entry       Entry
}

// Cache is a bounded LRU map from request fingerprint to completion result.
// Get is a pure lookup and never triggers computation. All operations hold
// the mutex for the duration of the map/list update only.
type Cache struct {
	mu    sync.Mutex
	bound int
	items map[string]*list.Element
	order *list.List // front = most recently used
}

// NewCache builds a cache holding at most bound entries.
func NewCache(bound int) *Cache {
	if bound <= 0 {
		bound = defaultCacheBound
	}
	return &Cache{
		bound: bound,
		items: make(map[string]*list.Element, bound),
		order: list.New(),
	}
}

// Get returns the entry for fingerprint and refreshes its recency.
func (c *Cache) Get(fingerprint string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[fingerprint]
	if !ok {
		cacheMissesTotal.Inc()
		return Entry{}, false
	}
	item := el.Value.(*cacheItem)
	item.entry.LastAccess = time.Now()
	c.order.MoveToFront(el)
	cacheHitsTotal.Inc()
	return item.entry, true
}

// Put inserts or overwrites the entry for fingerprint, evicting the least
// recently used entry when the bound would be exceeded.
func (c *Cache) Put(fingerprint, text string) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[fingerprint]; ok {
		item := el.Value.(*cacheItem)
		item.entry = Entry{Text: text, Created: now, LastAccess: now}
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.bound {
		back := c.order.Back()
		if back != nil {
			evicted := back.Value.(*cacheItem)
			delete(c.items, evicted.fingerprint)
			c.order.Remove(back)
			cacheEvictionsTotal.Inc()
		}
	}
	item := &cacheItem{
		fingerprint: fingerprint,
		entry:       Entry{Text: text, Created: now, LastAccess: now},
	}
	c.items[fingerprint] = c.order.PushFront(item)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.bound)
	c.order.Init()
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Bound returns the configured entry bound.
func (c *Cache) Bound() int { return c.bound }
