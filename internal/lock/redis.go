// Package lock provides distributed and local locking abstractions.
package lock

import (
	"context"
	"time"

	"github.com/emberstore/emberstore/internal/repository"
)

// RedisLocker adapts a repository.DistributedLock to the Locker interface
// for multi-instance deployments.
type RedisLocker struct {
	dl repository.DistributedLock
}

// NewRedisLocker wraps a DistributedLock implementation.
func NewRedisLocker(dl repository.DistributedLock) *RedisLocker {
	return &RedisLocker{dl: dl}
}

// Acquire attempts to take the lock. Returns false when another holder
// has it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.dl.Acquire(ctx, key, ttl)
}

// AcquireWithRetry retries Acquire with a delay between attempts.
func (l *RedisLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	return l.dl.AcquireWithRetry(ctx, key, ttl, maxRetries, retryDelay)
}

// Release frees the lock.
func (l *RedisLocker) Release(ctx context.Context, key string) (bool, error) {
	return l.dl.Release(ctx, key)
}

// Extend pushes out the expiry of a held lock.
func (l *RedisLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.dl.Extend(ctx, key, ttl)
}

// IsHeld reports whether the lock is currently held.
func (l *RedisLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	return l.dl.IsHeld(ctx, key)
}

// Ensure RedisLocker implements Locker
var _ Locker = (*RedisLocker)(nil)
