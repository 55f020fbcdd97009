package cache

import (
	"sync"
	"time"
)

type node[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	prev      *node[V]
	next      *node[V]
}

// LRU is a thread-safe, size-bounded cache whose entries also expire after a TTL.
// Expired entries are dropped lazily on access.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	items    map[string]*node[V]
	head     *node[V] // most recently used
	tail     *node[V] // least recently used
}

// NewLRU creates a cache holding up to capacity entries (1000 if <= 0).
// A ttl of 0 means entries only leave by eviction or Delete.
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 1000
	}
	c := &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*node[V], capacity),
		head:     &node[V]{},
		tail:     &node[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the value for key and marks it as recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	n, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.expired(n) {
		c.unlink(n)
		delete(c.items, key)
		return zero, false
	}
	c.moveToFront(n)
	return n.value, true
}

// Put adds or replaces the value for key, evicting the least recently used entry when full.
func (c *LRU[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if n, ok := c.items[key]; ok {
		n.value = value
		n.expiresAt = expiresAt
		c.moveToFront(n)
		return
	}
	if len(c.items) >= c.capacity {
		c.evictTail()
	}
	n := &node[V]{key: key, value: value, expiresAt: expiresAt}
	c.pushFront(n)
	c.items[key] = n
}

// Delete removes key and reports whether it was present.
func (c *LRU[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(n)
	delete(c.items, key)
	return true
}

// Len counts entries including ones that expired but were not touched since.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU[V]) expired(n *node[V]) bool {
	return !n.expiresAt.IsZero() && !c.now().Before(n.expiresAt)
}

func (c *LRU[V]) moveToFront(n *node[V]) {
	c.unlink(n)
	c.pushFront(n)
}

func (c *LRU[V]) unlink(n *node[V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *LRU[V]) pushFront(n *node[V]) {
	first := c.head.next
	n.next = first
	n.prev = c.head
	c.head.next = n
	first.prev = n
}

func (c *LRU[V]) evictTail() {
	lru := c.tail.prev
	if lru == c.head {
		return
	}
	c.unlink(lru)
	delete(c.items, lru.key)
}
