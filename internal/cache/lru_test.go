package cache

import (
	"errors"
	"testing"
	"time"
)

func TestLRUCache_ExpiryAndEviction(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](2, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be cached")
	}
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 2 {
		t.Errorf("Stats() = %+v, want 1 hit and 2 misses", st)
	}
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c := NewLRUCache[string](10, time.Hour)
	c.Set("CAME IN!B11:I", "x")
	c.Set("CAME IN!B10:I", "y")
	c.Set("WAITING ON!B11:G", "z")

	if n := c.DeletePrefix("CAME IN!"); n != 2 {
		t.Fatalf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("WAITING ON!B11:G"); !ok {
		t.Error("other tab should stay cached")
	}
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	c := NewLRUCache[int](4, time.Hour)
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("k", load)
		if err != nil || v != 42 {
			t.Fatalf("GetOrLoad() = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad("bad", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Errorf("expected loader error, got %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("failed load must not be cached")
	}
}

func TestManager_Sweep(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[int](4, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(time.Minute)

	swept := 0
	m := NewManager(func(n int) { swept += n })
	m.Register(c)
	m.Register(nil)

	if got := m.Sweep(); got != 2 {
		t.Errorf("Sweep() = %d, want 2", got)
	}
	if swept != 2 {
		t.Errorf("onSweep saw %d, want 2", swept)
	}
	if m.Sweep() != 0 || swept != 2 {
		t.Error("second sweep should remove nothing and not notify")
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
