package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryClient is an in-process Client bounded by entry count.
type MemoryClient struct {
	mu      sync.Mutex
	data    map[string]entry
	maxSize int
	now     func() time.Time
}

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func NewMemoryClient(maxSize int) *MemoryClient {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryClient{
		data:    make(map[string]entry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (c *MemoryClient) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if c.expired(e) {
		delete(c.data, key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (c *MemoryClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxSize {
		c.evictLocked()
	}
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.data[key] = e
	return nil
}

func (c *MemoryClient) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *MemoryClient) Close() error { return nil }

// Len reports the number of live entries.
func (c *MemoryClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.data {
		if !c.expired(e) {
			n++
		}
	}
	return n
}

func (c *MemoryClient) expired(e entry) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

// evictLocked drops expired entries, or the entry closest to expiry when none are.
func (c *MemoryClient) evictLocked() {
	var victim string
	var victimAt time.Time
	for k, e := range c.data {
		if c.expired(e) {
			delete(c.data, k)
			continue
		}
		if e.expiresAt.IsZero() {
			continue
		}
		if victim == "" || e.expiresAt.Before(victimAt) {
			victim, victimAt = k, e.expiresAt
		}
	}
	if len(c.data) < c.maxSize {
		return
	}
	if victim == "" {
		for k := range c.data {
			victim = k
			break
		}
	}
	delete(c.data, victim)
}
