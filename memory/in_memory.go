package memory

import (
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time // zero means never
}

// InMemoryCache is a process-local ResponseCache with per-entry TTLs.
// Expired entries are dropped lazily on access and by Prune.
//
// Concurrency: protected by RWMutex.
type InMemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

// Options configures an InMemoryCache.
type Options struct {
	// MaxEntries bounds the cache size. When full, expired entries are pruned
	// and, if still full, new entries are not stored. Zero means unbounded.
	MaxEntries int
}

// NewInMemoryCache creates an empty cache.
func NewInMemoryCache(optFns ...func(o *Options)) *InMemoryCache {
	opts := Options{MaxEntries: 10000}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &InMemoryCache{
		entries:    make(map[string]entry),
		maxEntries: opts.MaxEntries,
		now:        time.Now,
	}
}

// Get returns a copy of the cached value if present and not expired.
func (c *InMemoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if c.expired(e) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	return append([]byte(nil), e.value...), true
}

// Put stores a copy of value. A ttl <= 0 keeps the entry until evicted.
func (c *InMemoryCache) Put(key string, value []byte, ttl time.Duration) {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.pruneLocked()
		if len(c.entries) >= c.maxEntries {
			return
		}
	}

	c.entries[key] = e
}

// Prune removes expired entries and returns how many were removed.
func (c *InMemoryCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked()
}

// Len returns the number of entries, including expired ones not yet pruned.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryCache) pruneLocked() int {
	n := 0
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *InMemoryCache) expired(e entry) bool {
	return !e.expires.IsZero() && !c.now().Before(e.expires)
}
