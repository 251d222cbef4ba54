package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

var _ Cache[int] = (*LRUCache[int])(nil)

// LRUCache holds at most maxSize entries, each valid for ttl after it was
// stored. Expired entries are dropped when read or by CleanExpired.
type LRUCache[T any] struct {
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used

	evicted atomic.Int64
	expired atomic.Int64
}

type entry[T any] struct {
	key      string
	value    T
	storedAt time.Time
}

// LRUStats describes the cache contents and what it has dropped so far.
type LRUStats struct {
	Size    int
	Evicted int64
	Expired int64
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: max(maxSize, 1),
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *LRUCache[T]) stale(e *entry[T], now time.Time) bool {
	return now.Sub(e.storedAt) > c.ttl
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	v, _, ok := c.GetWithAge(key)
	return v, ok
}

// GetWithAge also reports how long ago the value was stored.
func (c *LRUCache[T]) GetWithAge(key string) (T, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.entries[key]
	if !ok {
		return zero, 0, false
	}
	e := el.Value.(*entry[T])
	now := c.now()
	if c.stale(e, now) {
		c.unlink(el)
		c.expired.Add(1)
		return zero, 0, false
	}
	c.order.MoveToFront(el)
	return e.value, now.Sub(e.storedAt), true
}

func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, value: value, storedAt: c.now()}
	if el, ok := c.entries[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(e)
	for c.order.Len() > c.maxSize {
		c.unlink(c.order.Back())
		c.evicted.Add(1)
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.unlink(el)
	}
}

func (c *LRUCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.order.Init()
}

func (c *LRUCache[T]) unlink(el *list.Element) {
	delete(c.entries, el.Value.(*entry[T]).key)
	c.order.Remove(el)
}

// CleanExpired drops every stale entry and returns how many it dropped.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if c.stale(el.Value.(*entry[T]), now) {
			c.unlink(el)
			n++
		}
		el = prev
	}
	c.expired.Add(int64(n))
	return n
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LRUCache[T]) Stats() LRUStats {
	return LRUStats{Size: c.Size(), Evicted: c.evicted.Load(), Expired: c.expired.Load()}
}
