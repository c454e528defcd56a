package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Entries written without an expiration still age out eventually.
const defaultMemoryTTL = 7 * 24 * time.Hour

type memoryItem struct {
	value    interface{}
	expireAt time.Time
}

func (m *memoryItem) expired() bool {
	return time.Now().After(m.expireAt)
}

// MemoryCache implements Service in process memory with LRU eviction at a
// fixed size cap and periodic sweeping of expired entries.
type MemoryCache struct {
	items   map[string]*memoryItem
	touched map[string]time.Time
	mu      sync.RWMutex
	maxSize int
	janitor *time.Ticker
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		items:   make(map[string]*memoryItem),
		touched: make(map[string]time.Time),
		maxSize: cfg.MaxSize,
		janitor: time.NewTicker(cfg.CleanupInterval),
	}
	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.items) >= mc.maxSize {
		mc.evictOldest()
	}

	expireAt := time.Now().Add(expiration)
	if expiration <= 0 {
		expireAt = time.Now().Add(defaultMemoryTTL)
	}

	mc.items[key] = &memoryItem{value: value, expireAt: expireAt}
	mc.touched[key] = time.Now()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, exists := mc.items[key]
	if !exists || item.expired() {
		if exists {
			mc.drop(key)
		}
		return ErrCacheMiss
	}

	mc.touched[key] = time.Now()

	switch d := dest.(type) {
	case *string:
		if str, ok := item.value.(string); ok {
			*d = str
			return nil
		}
	case *interface{}:
		*d = item.value
		return nil
	}

	// Type mismatch behaves like a miss so callers fall back to the source
	return ErrCacheMiss
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		mc.drop(key)
	}
	return nil
}

// DeleteByPattern clears everything; the memory layer does not track patterns.
func (mc *MemoryCache) DeleteByPattern(_ context.Context, _ string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.items = make(map[string]*memoryItem)
	mc.touched = make(map[string]time.Time)
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	for _, key := range keys {
		if item, ok := mc.items[key]; ok && !item.expired() {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, exists := mc.items[key]
	if !exists {
		mc.items[key] = &memoryItem{value: int64(1), expireAt: time.Now().Add(defaultMemoryTTL)}
		return 1, nil
	}

	if val, ok := item.value.(int64); ok {
		item.value = val + 1
		return val + 1, nil
	}
	return 0, fmt.Errorf("value is not int64")
}

func (mc *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if item, ok := mc.items[key]; ok {
		item.expireAt = time.Now().Add(expiration)
		return true, nil
	}
	return false, nil
}

func (mc *MemoryCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	for key, value := range values {
		if err := mc.Set(ctx, key, value, expiration); err != nil {
			return err
		}
	}
	return nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	results := make(map[string]string)
	for _, key := range keys {
		if item, ok := mc.items[key]; ok && !item.expired() {
			if str, ok := item.value.(string); ok {
				results[key] = str
			}
		}
	}
	return results, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if item, ok := mc.items[key]; ok && !item.expired() {
		return false, nil
	}
	mc.items[key] = &memoryItem{value: "locked", expireAt: time.Now().Add(ttl)}
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	if mc.janitor != nil {
		mc.janitor.Stop()
	}
	return nil
}

// drop removes a key; callers hold the write lock.
func (mc *MemoryCache) drop(key string) {
	delete(mc.items, key)
	delete(mc.touched, key)
}

// evictOldest removes the least recently touched entry; callers hold the
// write lock.
func (mc *MemoryCache) evictOldest() {
	if len(mc.items) == 0 {
		return
	}

	var oldestKey string
	oldestTime := time.Now()
	for key, at := range mc.touched {
		if at.Before(oldestTime) {
			oldestTime = at
			oldestKey = key
		}
	}
	if oldestKey != "" {
		mc.drop(oldestKey)
	}
}

func (mc *MemoryCache) sweep() {
	for range mc.janitor.C {
		mc.mu.Lock()
		now := time.Now()
		for key, item := range mc.items {
			if now.After(item.expireAt) {
				mc.drop(key)
			}
		}
		mc.mu.Unlock()
	}
}
