package cache

import (
	"testing"
	"time"
)

func TestTTLExpiry(t *testing.T) {
	c := NewTTL[string](4, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	c.Set("a", "one")
	if v, ok := c.Get("a"); !ok || v != "one" {
		t.Fatalf("Get(a) = %q, %v; want one, true", v, ok)
	}

	now = now.Add(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry expired before its TTL")
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry survived past its TTL")
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after expiry, want 0", c.Len())
	}
}

func TestTTLCapacityEviction(t *testing.T) {
	c := NewTTL[int](2, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	c.Set("a", 1)
	now = now.Add(time.Second)
	c.Set("b", 2)
	now = now.Add(time.Second)
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry was not evicted at capacity")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("newer entry was evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry missing")
	}
}

func TestTTLOverwriteDoesNotEvict(t *testing.T) {
	c := NewTTL[int](2, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)

	if v, ok := c.Get("a"); !ok || v != 10 {
		t.Errorf("Get(a) = %d, %v; want 10, true", v, ok)
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("overwrite of existing key evicted another entry")
	}
}
