package cache

import (
	"testing"
	"time"
)

func TestTTL_GetPut(t *testing.T) {
	c := New[string, int](time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected a miss for an unknown key")
	}

	c.Put("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Errorf("expected 1, got %d (hit=%v)", v, ok)
	}
}

func TestTTL_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	c := New[string, int](time.Minute)
	c.SetClock(func() time.Time { return clock })

	c.Put("a", 1)

	clock = now.Add(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Error("entry should still be fresh just under the TTL")
	}

	clock = now.Add(61 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("entry should have expired past the TTL")
	}
	if c.Len() != 0 {
		t.Error("expired entry should be collected on read")
	}
}

func TestTTL_PutResetsAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	c := New[string, int](time.Minute)
	c.SetClock(func() time.Time { return clock })

	c.Put("a", 1)
	clock = now.Add(50 * time.Second)
	c.Put("a", 2)

	clock = now.Add(100 * time.Second)
	v, ok := c.Get("a")
	if !ok || v != 2 {
		t.Errorf("rewritten entry should be fresh, got %d (hit=%v)", v, ok)
	}
}

func TestTTL_NonPositiveMaxAgeNeverExpires(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New[string, int](0)
	c.SetClock(func() time.Time { return clock })

	c.Put("a", 1)
	clock = clock.AddDate(1, 0, 0)
	if _, ok := c.Get("a"); !ok {
		t.Error("entries should never expire with maxAge 0")
	}
}

func TestTTL_Invalidate(t *testing.T) {
	c := New[string, int](time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("other", 3)

	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("invalidated entry should be gone")
	}

	c.InvalidateFunc(func(k string) bool { return len(k) == 1 })
	if _, ok := c.Get("b"); ok {
		t.Error("entry matching the predicate should be gone")
	}
	if _, ok := c.Get("other"); !ok {
		t.Error("non-matching entry should survive")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d entries", c.Len())
	}
}
