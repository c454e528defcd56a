package cache

import (
	"sync"
	"time"
)

type item struct {
	val      any
	deadline time.Time
}

func (it item) live(now time.Time) bool {
	return it.deadline.IsZero() || now.Before(it.deadline)
}

// TTLCache is an in-process key/value store with per-entry expiry. A zero TTL
// stores the entry without a deadline.
type TTLCache struct {
	mu sync.RWMutex
	m  map[string]item
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]item)}
}

func (c *TTLCache) Get(key string) (any, bool) {
	now := time.Now()

	c.mu.RLock()
	it, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !it.live(now) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false
	}
	return it.val, true
}

func (c *TTLCache) Set(key string, v any, ttl time.Duration) {
	var deadline time.Time
	if ttl > 0 {
		deadline = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = item{val: v, deadline: deadline}
	c.mu.Unlock()
}

// GetBytes implements BytesCache. A stored value of any other type reads as
// a miss.
func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	c.Set(key, value, ttl)
	return nil
}
