package ratelimit

import (
    "sync"
    "time"
)

type bucket struct {
    tokens     float64
    capacity   float64
    refillRate float64 // tokens per second
    last       time.Time
}

func (b *bucket) refill(now time.Time) {
    elapsed := now.Sub(b.last).Seconds()
    if elapsed <= 0 {
        return
    }
    b.tokens += elapsed * b.refillRate
    if b.tokens > b.capacity {
        b.tokens = b.capacity
    }
    b.last = now
}

// Limiter is a token-bucket rate limiter keyed by caller-chosen strings, one
// independent bucket per key.
type Limiter struct {
    mu sync.Mutex
    m  map[string]*bucket
}

func New() *Limiter { return &Limiter{m: make(map[string]*bucket)} }

// Allow consumes one token for key if the bucket has any. New keys start with
// a full bucket.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
    now := time.Now()

    l.mu.Lock()
    defer l.mu.Unlock()

    b, ok := l.m[key]
    if !ok {
        b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
        l.m[key] = b
    }
    b.refill(now)

    if b.tokens < 1 {
        return false
    }
    b.tokens--
    return true
}
