package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker with process-local state. Suitable for
// single-node deployments; locks do not survive restarts and are invisible
// to other instances.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

// NewMemoryLocker creates a new in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	ml := &MemoryLocker{
		locks: make(map[string]time.Time),
	}
	go ml.reapLoop()
	return ml
}

func (m *MemoryLocker) reapLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		now := time.Now()
		for key, expiresAt := range m.locks {
			if now.After(expiresAt) {
				delete(m.locks, key)
			}
		}
		m.mu.Unlock()
	}
}

// Acquire attempts to take the lock, succeeding if it is free or expired.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if expiresAt, held := m.locks[key]; held && now.Before(expiresAt) {
		return false, nil
	}

	m.locks[key] = now.Add(ttl)
	return true, nil
}

// AcquireWithRetry retries Acquire up to maxRetries times, waiting
// retryDelay between attempts.
func (m *MemoryLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for attempt := 0; ; attempt++ {
		acquired, err := m.Acquire(ctx, key, ttl)
		if acquired || err != nil {
			return acquired, err
		}
		if attempt >= maxRetries {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// Release frees the lock. Returns false if it was not held.
func (m *MemoryLocker) Release(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.locks[key]; !held {
		return false, nil
	}
	delete(m.locks, key)
	return true, nil
}

// Extend pushes out the expiry of a held lock.
func (m *MemoryLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, held := m.locks[key]
	if !held || time.Now().After(expiresAt) {
		delete(m.locks, key)
		return false, nil
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

// IsHeld reports whether the lock is currently held.
func (m *MemoryLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, held := m.locks[key]
	if !held {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(m.locks, key)
		return false, nil
	}
	return true, nil
}

// Ensure MemoryLocker implements Locker.
var _ Locker = (*MemoryLocker)(nil)
