package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/emberstore/emberstore/internal/repository"
)

// Lua scripts for lock operations. The token check makes release and
// extend safe against a lock that expired and was re-acquired elsewhere.
var (
	releaseScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)

	extendScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// DistributedLock implements repository.DistributedLock using Redis SET NX
// with a per-holder token.
type DistributedLock struct {
	client *redis.Client
	token  string
}

// NewDistributedLock creates a new Redis-backed distributed lock.
// Each instance carries its own token, so locks acquired by one instance
// cannot be released by another.
func NewDistributedLock(client *redis.Client) *DistributedLock {
	return &DistributedLock{
		client: client,
		token:  uuid.NewString(),
	}
}

// Acquire attempts to acquire a lock.
func (l *DistributedLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock acquire: %w", err)
	}
	return ok, nil
}

// AcquireWithRetry attempts to acquire a lock with retries.
func (l *DistributedLock) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for attempt := 0; ; attempt++ {
		acquired, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
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

// Release releases a lock if this instance holds it.
func (l *DistributedLock) Release(ctx context.Context, key string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.client, []string{key}, l.token).Int64()
	if err != nil {
		return false, fmt.Errorf("redis lock release: %w", err)
	}
	return n == 1, nil
}

// Extend extends the TTL of a lock held by this instance.
func (l *DistributedLock) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, l.client, []string{key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis lock extend: %w", err)
	}
	return n == 1, nil
}

// IsHeld checks if this instance holds the lock.
func (l *DistributedLock) IsHeld(ctx context.Context, key string) (bool, error) {
	val, err := l.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("redis lock check: %w", err)
	}
	return val == l.token, nil
}

// Ensure DistributedLock implements repository.DistributedLock
var _ repository.DistributedLock = (*DistributedLock)(nil)
