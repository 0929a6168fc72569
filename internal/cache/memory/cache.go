// Package memory provides an in-process cache for single-node deployments
// where Redis is not available.
package memory

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/emberstore/emberstore/internal/repository"
)

// Cache implements repository.Cache over a plain map. Not suitable for
// distributed deployments: entries are invisible to other instances.
type Cache struct {
	mu      sync.RWMutex
	items   map[string]*entry
	stopCh  chan struct{}
	stopped bool
}

type entry struct {
	value     []byte
	expiresAt time.Time
	noExpiry  bool
}

func (e *entry) expired() bool {
	return !e.noExpiry && time.Now().After(e.expiresAt)
}

func newEntry(value []byte, ttl time.Duration) *entry {
	// Copy so callers cannot mutate cached bytes.
	buf := make([]byte, len(value))
	copy(buf, value)

	e := &entry{value: buf}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	} else {
		e.noExpiry = true
	}
	return e
}

// NewCache creates a new in-memory cache with a background janitor.
func NewCache() *Cache {
	c := &Cache{
		items:  make(map[string]*entry),
		stopCh: make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *Cache) janitor() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			for key, e := range c.items {
				if e.expired() {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Stop terminates the janitor goroutine.
func (c *Cache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stopped {
		close(c.stopCh)
		c.stopped = true
	}
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || e.expired() {
		return nil, repository.ErrCacheMiss
	}

	result := make([]byte, len(e.value))
	copy(result, e.value)
	return result, nil
}

// Set stores a value. A non-positive TTL means no expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = newEntry(value, ttl)
	return nil
}

// SetNX stores a value only if the key is absent or expired.
func (c *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok && !e.expired() {
		return false, nil
	}

	c.items[key] = newEntry(value, ttl)
	return true, nil
}

// Delete removes a value by key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Exists reports whether a live entry exists for the key.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	return ok && !e.expired(), nil
}

// Expire replaces the TTL of an existing key.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil
	}

	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
		e.noExpiry = false
	} else {
		e.noExpiry = true
	}

	return nil
}

// TTL returns the remaining lifetime of a key: -1 if absent or expired,
// -2 if the key has no expiry, mirroring Redis semantics.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok {
		return -1, nil
	}
	if e.noExpiry {
		return -2, nil
	}

	remaining := time.Until(e.expiresAt)
	if remaining < 0 {
		return -1, nil
	}
	return remaining, nil
}

// GetMulti retrieves several keys, omitting misses from the result.
func (c *Cache) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string][]byte)
	for _, key := range keys {
		if e, ok := c.items[key]; ok && !e.expired() {
			buf := make([]byte, len(e.value))
			copy(buf, e.value)
			result[key] = buf
		}
	}

	return result, nil
}

// SetMulti stores several values with a shared TTL.
func (c *Cache) SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range items {
		c.items[key] = newEntry(value, ttl)
	}

	return nil
}

// DeleteMulti removes several keys.
func (c *Cache) DeleteMulti(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.items, key)
	}

	return nil
}

// Increment atomically adds delta to an integer value, creating it at
// zero if absent. Counter entries never expire.
func (c *Cache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int64
	if e, ok := c.items[key]; ok && !e.expired() && len(e.value) == 8 {
		current = int64(binary.LittleEndian.Uint64(e.value))
	}

	updated := current + delta

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(updated))
	c.items[key] = &entry{value: buf, noExpiry: true}

	return updated, nil
}

// Decrement atomically subtracts delta from an integer value.
func (c *Cache) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	return c.Increment(ctx, key, -delta)
}

// Ensure Cache implements repository.Cache.
var _ repository.Cache = (*Cache)(nil)
