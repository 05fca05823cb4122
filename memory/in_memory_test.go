package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/turnmesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.ResponseCache = (*InMemoryCache)(nil)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestInMemoryCache_GetPut(t *testing.T) {
	c := NewInMemoryCache()

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss on empty cache")
	}

	v := []byte(`{"intent":"greet"}`)
	c.Put("k", v, time.Minute)
	v[0] = 'X' // caller mutation must not leak

	got, ok := c.Get("k")
	if !ok || string(got) != `{"intent":"greet"}` {
		t.Fatalf("unexpected cached value: %q %v", got, ok)
	}

	got[0] = 'Y'
	again, _ := c.Get("k")
	if again[0] != '{' {
		t.Fatal("expected copy isolation on Get")
	}
}

func TestInMemoryCache_TTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewInMemoryCache()
	c.now = clock.now

	c.Put("short", []byte("a"), time.Second)
	c.Put("forever", []byte("b"), 0)

	clock.t = clock.t.Add(2 * time.Second)

	if _, ok := c.Get("short"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if _, ok := c.Get("forever"); !ok {
		t.Fatal("expected entry without ttl to survive")
	}
}

func TestInMemoryCache_MaxEntries(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewInMemoryCache(func(o *Options) { o.MaxEntries = 2 })
	c.now = clock.now

	c.Put("a", []byte("1"), time.Second)
	c.Put("b", []byte("2"), time.Minute)
	c.Put("c", []byte("3"), time.Minute)

	if _, ok := c.Get("c"); ok {
		t.Fatal("expected full cache to reject new entry")
	}

	clock.t = clock.t.Add(2 * time.Second)
	c.Put("c", []byte("3"), time.Minute)

	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected entry after pruning expired one")
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
}

func TestInMemoryCache_Prune(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewInMemoryCache()
	c.now = clock.now

	for _, k := range []string{"a", "b", "c"} {
		c.Put(k, []byte(k), time.Second)
	}
	c.Put("d", []byte("d"), time.Hour)

	clock.t = clock.t.Add(time.Minute)

	if n := c.Prune(); n != 3 {
		t.Fatalf("expected 3 pruned, got %d", n)
	}
}

func TestInMemoryCache_Concurrent(t *testing.T) {
	c := NewInMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%5))
			c.Put(key, []byte{byte(i)}, time.Minute)
			c.Get(key)
		}(i)
	}
	wg.Wait()

	if c.Len() != 5 {
		t.Fatalf("expected 5 keys, got %d", c.Len())
	}
}
