// Package cache provides an in-memory ports.CacheRepository for tests.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/eventrentals/portal/internal/ports"
)

var _ ports.CacheRepository = (*MemoryCache)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a mutex-guarded map honoring TTLs against Now.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	gets    int

	// Err, when set, is returned from every operation.
	Err error
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry)}
}

func (c *MemoryCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *MemoryCache) liveLocked(key string) (entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return entry{}, false
	}
	return e, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.Err != nil {
		return nil, c.Err
	}
	e, ok := c.liveLocked(key)
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return false, c.Err
	}
	_, ok := c.liveLocked(key)
	delete(c.entries, key)
	return ok, nil
}

func (c *MemoryCache) SetIfNotExists(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return false, c.Err
	}
	if _, ok := c.liveLocked(key); ok {
		return false, nil
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	c.entries[key] = entry{value: append([]byte(nil), value...), expiresAt: c.now().Add(ttl)}
	return true, nil
}

func (c *MemoryCache) Health(context.Context) error { return c.Err }

// Has reports whether a live entry exists for key.
func (c *MemoryCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.liveLocked(key)
	return ok
}

// Gets returns the number of Get calls.
func (c *MemoryCache) Gets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}
