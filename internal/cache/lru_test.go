package cache

import (
	"testing"
	"time"
)

func TestLRU_GetSet(t *testing.T) {
	c := NewLRU[string](2, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) ok = true, want false")
	}

	c.Set("a", "1")
	c.Set("b", "2")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v; want 1, true", v, ok)
	}

	// a was touched, so adding c evicts b.
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) ok = true, want evicted")
	}
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) after eviction = %q, %v; want 1, true", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRU_SetOverwrites(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	c.Set("a", 1)
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) = %d, want 2", v)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRU_TTLExpiry(t *testing.T) {
	c := NewLRU[int](4, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) ok = true, want expired")
	}
}

func TestLRU_Delete(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	c.Delete("a") // deleting twice is fine
	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) ok = true after delete, want false")
	}
}

func TestLRU_CleanExpired(t *testing.T) {
	c := NewLRU[int](8, 10*time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.Set("c", 3)

	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("CleanExpired() = %d, want 2", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() after cleanup = %d, want 1", c.Size())
	}
}

func TestJanitor(t *testing.T) {
	c := NewLRU[int](8, 5*time.Millisecond)
	c.Set("a", 1)

	j := NewJanitor()
	j.Register(c)
	j.Start(10 * time.Millisecond)

	time.Sleep(40 * time.Millisecond)
	j.Stop()

	if c.Size() != 0 {
		t.Errorf("Size() after janitor run = %d, want 0", c.Size())
	}
}
