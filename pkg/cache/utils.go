package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// GenerateKey joins a prefix and id into a cache key.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// HashKey digests a long or unbounded key into a fixed-width one.
func HashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// BuildPattern creates a Redis match pattern covering every key under prefix.
func BuildPattern(prefix string) string {
	return fmt.Sprintf("%s*", prefix)
}
