package cache

import (
	"testing"
	"time"
)

// TestLRUCacheEviction tests size-based eviction
func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Get("key1") // key2 is now least recently used
	c.Set("key4", "value4")

	if _, found := c.Get("key2"); found {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("size = %d, want 3", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute).WithClock(func() time.Time { return now })

	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	c.Set("c", 3)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired = %d, want 2", n)
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("Get(c) = %d, %v", v, ok)
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Hour)
	c.Set("alice:summary", 1)
	c.Set("alice:expenses", 2)
	c.Set("bob:summary", 3)

	if n := c.DeletePrefix("alice:"); n != 2 {
		t.Fatalf("DeletePrefix = %d, want 2", n)
	}
	if _, ok := c.Get("bob:summary"); !ok {
		t.Fatal("bob's entry should survive")
	}
	c.Delete("bob:summary")
	if c.Size() != 0 {
		t.Fatalf("size = %d, want 0", c.Size())
	}
}

type countingCleaner struct{ calls chan struct{} }

func (c countingCleaner) CleanExpired() int {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return 1
}

func TestManagerSweepsRegisteredCaches(t *testing.T) {
	m := NewManager()
	cl := countingCleaner{calls: make(chan struct{}, 1)}
	m.Register(cl)
	m.StartCleanup(5 * time.Millisecond)

	select {
	case <-cl.calls:
	case <-time.After(time.Second):
		t.Fatal("cleaner was never called")
	}
	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop()
}
