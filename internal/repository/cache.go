// Package repository defines data access interfaces for Emberstore.
package repository

import (
	"context"
	"time"
)

// =============================================================================
// Cache Interface (Redis)
// =============================================================================

// Cache defines the interface for caching operations.
// Primarily implemented using Redis for distributed caching; an in-memory
// implementation serves single-node deployments.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX sets a value only if the key doesn't exist.
	// Returns true if the value was set, false if the key already exists.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Expire sets or updates the TTL for a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining TTL for a key.
	// Returns -1 if the key doesn't exist, -2 if no TTL is set.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// GetMulti retrieves multiple values by keys.
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// SetMulti stores multiple values.
	SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// DeleteMulti removes multiple values.
	DeleteMulti(ctx context.Context, keys ...string) error

	// Increment atomically increments an integer value.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Decrement atomically decrements an integer value.
	Decrement(ctx context.Context, key string, delta int64) (int64, error)
}

// =============================================================================
// Distributed Lock Interface (Redis)
// =============================================================================

// DistributedLock defines the interface for distributed locking.
// Used to coordinate operations across multiple server instances.
type DistributedLock interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another process.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)

	// Extend extends the TTL of a held lock.
	// Returns true if the lock was extended, false if it's not held.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsHeld checks if the lock is currently held.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Common Cache Keys
// =============================================================================

// CacheKey generates cache keys for common scenarios.
type CacheKey struct{}

// Bucket returns a cache key for bucket metadata.
func (CacheKey) Bucket(name string) string {
	return "cache:bucket:" + name
}

// AccessKey returns a cache key for access key metadata.
func (CacheKey) AccessKey(accessKeyID string) string {
	return "cache:accesskey:" + accessKeyID
}

// BucketPolicies returns a cache key for a bucket's policy documents.
func (CacheKey) BucketPolicies(bucketName string) string {
	return "cache:policy:bucket:" + bucketName
}

// UserPolicies returns a cache key for a user's policy documents.
func (CacheKey) UserPolicies(username string) string {
	return "cache:policy:user:" + username
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// LockKey generates lock keys for common scenarios.
type LockKey struct{}

// BucketPolicyWrite returns a lock key serializing policy writes on a bucket.
func (LockKey) BucketPolicyWrite(bucketName string) string {
	return "lock:policy:bucket:" + bucketName
}

// UserPolicyWrite returns a lock key serializing policy writes on a user.
func (LockKey) UserPolicyWrite(username string) string {
	return "lock:policy:user:" + username
}
