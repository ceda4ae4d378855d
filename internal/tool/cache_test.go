package tool

import (
	"testing"
	"time"
)

func TestCacheGetSetRoundTrip(t *testing.T) {
	c := NewResultCache(time.Minute, time.Hour)
	defer c.Close()

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Set("k", "v1")
	v, ok := c.Get("k")
	if !ok || v != "v1" {
		t.Fatalf("Get() = %v, %v, want v1, true", v, ok)
	}

	// Setting the same key again deterministically overwrites it.
	c.Set("k", "v2")
	v, ok = c.Get("k")
	if !ok || v != "v2" {
		t.Fatalf("Get() after overwrite = %v, %v, want v2, true", v, ok)
	}
}

func TestCacheEntryExpires(t *testing.T) {
	c := NewResultCache(time.Hour, time.Hour)
	defer c.Close()

	c.SetTTL("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestCacheInvalidateRemovesEntry(t *testing.T) {
	c := NewResultCache(time.Minute, time.Hour)
	defer c.Close()

	c.Set("k", "v")
	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected invalidated entry to miss")
	}
}

func TestCacheCleanupSweepsExpiredEntries(t *testing.T) {
	c := NewResultCache(time.Millisecond, 2*time.Millisecond)
	defer c.Close()

	c.Set("k", "v")
	time.Sleep(20 * time.Millisecond)

	c.mu.RLock()
	_, stillThere := c.entries["k"]
	c.mu.RUnlock()
	if stillThere {
		t.Fatal("background cleanup should have evicted the expired entry")
	}
}
