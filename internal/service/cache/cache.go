package cache

import "time"

// BytesCache stores raw response bytes under a key with a TTL. Both the
// in-process and Redis implementations satisfy it.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
