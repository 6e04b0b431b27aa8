package service

import (
	"sync"
	"time"
)

type ttlItem[T any] struct {
	v   T
	exp time.Time
}

// TTLCache is a bounded in-memory cache with a per-entry time to live.
// Expired entries are dropped lazily on Get; when full, the oldest inserted key is evicted.
type TTLCache[T any] struct {
	mu   sync.Mutex
	ttl  time.Duration
	size int
	now  func() time.Time
	data map[string]ttlItem[T]
	keys []string
}

// NewTTLCache constructs a cache holding at most size entries for ttl each.
// A non-positive ttl or size disables caching.
func NewTTLCache[T any](size int, ttl time.Duration) *TTLCache[T] {
	return &TTLCache[T]{
		ttl:  ttl,
		size: size,
		now:  time.Now,
		data: make(map[string]ttlItem[T]),
	}
}

// Get returns the value for k if present and not expired.
func (c *TTLCache[T]) Get(k string) (T, bool) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.data[k]
	if !ok {
		return zero, false
	}
	if !c.now().Before(it.exp) {
		delete(c.data, k)
		return zero, false
	}
	return it.v, true
}

// Set stores v under k until now+ttl.
func (c *TTLCache[T]) Set(k string, v T) {
	if c.ttl <= 0 || c.size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[k]; !exists {
		for len(c.data) >= c.size && len(c.keys) > 0 {
			oldest := c.keys[0]
			c.keys = c.keys[1:]
			delete(c.data, oldest)
		}
		c.keys = append(c.keys, k)
	}
	c.data[k] = ttlItem[T]{v: v, exp: c.now().Add(c.ttl)}
	c.compact()
}

// Delete removes k.
func (c *TTLCache[T]) Delete(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, k)
	c.compact()
}

// Len returns the number of stored entries, expired ones included.
func (c *TTLCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// compact drops queue entries whose keys were deleted or expired lazily so the
// queue stays proportional to the map. Caller holds mu.
func (c *TTLCache[T]) compact() {
	if len(c.keys) <= 2*c.size {
		return
	}
	live := c.keys[:0]
	for _, k := range c.keys {
		if _, ok := c.data[k]; ok {
			live = append(live, k)
		}
	}
	c.keys = live
}
