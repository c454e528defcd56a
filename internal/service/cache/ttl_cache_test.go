package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", 42, time.Minute)

	v, ok := c.Get("k")
	if !ok || v.(int) != 42 {
		t.Fatalf("got %v %v, want 42 true", v, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatal("missing key should not be found")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", 10*time.Millisecond)

	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", 0)

	time.Sleep(15 * time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("zero ttl entry should persist")
	}
}

func TestTTLCacheBytes(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("k", []byte("payload"), time.Minute); err != nil {
		t.Fatal(err)
	}

	b, ok, err := c.GetBytes("k")
	if err != nil || !ok || string(b) != "payload" {
		t.Fatalf("got %q %v %v", b, ok, err)
	}

	// non-byte values are not surfaced through the bytes API
	c.Set("other", 7, time.Minute)
	if _, ok, _ := c.GetBytes("other"); ok {
		t.Fatal("non-bytes entry should miss")
	}
}
