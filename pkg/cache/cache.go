package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the cache contract shared by the Redis, memory, and layered
// implementations.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
	MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error
	MGet(ctx context.Context, keys ...string) (map[string]string, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// MGetTyped fetches several keys and decodes each into T. Entries that fail
// to decode are dropped rather than failing the whole fetch.
func MGetTyped[T any](ctx context.Context, c Service, keys ...string) (map[string]T, error) {
	out := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	raw, err := c.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}
	for key, val := range raw {
		var obj T
		if err := json.Unmarshal([]byte(val), &obj); err != nil {
			continue
		}
		out[key] = obj
	}
	return out, nil
}
