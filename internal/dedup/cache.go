// Package dedup implements the pipeline's replay-suppression cache.
package dedup

import (
	"container/list"
	"sync"
	"time"
)

// entry is one (key, insertedAt) pair, stored in the insertion-order
// list; Cache.index maps each key to its list element.
type entry struct {
	key        string
	insertedAt time.Time
}

// Cache suppresses repeat activities across monitor poll cycles. It is
// memory-resident by design — no durability across restarts — and is
// touched only from Tier A.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	order      *list.List               // front = oldest insertion
	index      map[string]*list.Element // key -> element holding *entry
}

// New creates a Cache with the given TTL and maximum entry count.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 5000
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		order:      list.New(),
		index:      make(map[string]*list.Element),
	}
}

// CheckAndRemember returns true if key was not present (and now is);
// false if it was present. Every call first sweeps expired entries, then
// evicts the oldest-inserted entry if the cache would otherwise exceed
// maxEntries.
func (c *Cache) CheckAndRemember(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.sweepExpired(now)

	if _, exists := c.index[key]; exists {
		return false
	}

	el := c.order.PushBack(&entry{key: key, insertedAt: now})
	c.index[key] = el

	if c.order.Len() > c.maxEntries {
		c.evictOldest()
	}

	return true
}

// Size returns the number of non-expired entries currently held.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepExpired(time.Now())
	return c.order.Len()
}

// sweepExpired removes every entry older than ttl. Single O(n) pass,
// acceptable because n is bounded by maxEntries.
func (c *Cache) sweepExpired(now time.Time) {
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if now.Sub(e.insertedAt) <= c.ttl {
			break // order list is insertion-ordered, so everything after is younger
		}
		c.order.Remove(el)
		delete(c.index, e.key)
		el = next
	}
}

func (c *Cache) evictOldest() {
	oldest := c.order.Front()
	if oldest == nil {
		return
	}
	e := oldest.Value.(*entry)
	c.order.Remove(oldest)
	delete(c.index, e.key)
}
