package storekit

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long a cached backend client or bucket handle is
// served before it is recreated.
const DefaultCacheTTL = 1200 * time.Second

// cacheEntry pairs a cached value with its expiry.
type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// ClientCache is the process-wide cache of expensive backend handles:
// SDK clients keyed by scheme, bucket handles keyed by scheme+bucket.
//
// A single mutex guards the whole check-then-create sequence, so exactly
// one factory invocation happens per key even under concurrent access.
// The factory deliberately runs while the lock is held: the underlying
// SDKs are not safe to initialize concurrently.
type ClientCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration

	now func() time.Time // test hook
}

// NewClientCache creates a cache with the given TTL, or DefaultCacheTTL
// when ttl <= 0.
func NewClientCache(ttl time.Duration) *ClientCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ClientCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetOrCreate returns the unexpired cached value for key, or calls factory,
// stores its result with a fresh expiry, and returns it. An expired entry
// is never returned. Nothing is cached when factory fails.
func (c *ClientCache) GetOrCreate(key string, factory func() (any, error)) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && c.now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	value, err := factory()
	if err != nil {
		return nil, err
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
	return value, nil
}

// Invalidate drops the entry for key, forcing the next GetOrCreate to
// recreate it.
func (c *ClientCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries, expired or not.
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
