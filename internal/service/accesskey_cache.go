package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/emberstore/emberstore/internal/auth"
	"github.com/emberstore/emberstore/internal/repository"
)

// CachedAccessKeyStore decorates an auth.AccessKeyStore with a short-lived
// cache of resolved credentials. Signature verification happens on every
// request; the cache only saves the key lookup and secret decryption.
// Cache failures fall through to the underlying store.
type CachedAccessKeyStore struct {
	store  auth.AccessKeyStore
	cache  repository.Cache
	ttl    time.Duration
	logger zerolog.Logger

	keys repository.CacheKey
}

// NewCachedAccessKeyStore creates a caching decorator around store.
func NewCachedAccessKeyStore(store auth.AccessKeyStore, cache repository.Cache, ttl time.Duration, logger zerolog.Logger) *CachedAccessKeyStore {
	return &CachedAccessKeyStore{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "accesskey_cache").Logger(),
	}
}

// GetActiveAccessKey implements auth.AccessKeyStore.
func (c *CachedAccessKeyStore) GetActiveAccessKey(ctx context.Context, accessKeyID string) (*auth.AccessKeyInfo, error) {
	cacheKey := c.keys.AccessKey(accessKeyID)

	if data, err := c.cache.Get(ctx, cacheKey); err == nil {
		info := &auth.AccessKeyInfo{}
		if err := json.Unmarshal(data, info); err == nil {
			return info, nil
		}
		// Corrupt entry, drop it and fall through
		_ = c.cache.Delete(ctx, cacheKey)
	} else if !errors.Is(err, repository.ErrCacheMiss) {
		c.logger.Warn().Err(err).Msg("access key cache read failed")
	}

	info, err := c.store.GetActiveAccessKey(ctx, accessKeyID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(info); err == nil {
		if err := c.cache.Set(ctx, cacheKey, data, c.ttl); err != nil {
			c.logger.Warn().Err(err).Msg("access key cache write failed")
		}
	}

	return info, nil
}

// UpdateLastUsed implements auth.AccessKeyStore.
func (c *CachedAccessKeyStore) UpdateLastUsed(ctx context.Context, accessKeyID string) error {
	return c.store.UpdateLastUsed(ctx, accessKeyID)
}

// Invalidate removes a cached credential, typically after the key or its
// owning user changes state.
func (c *CachedAccessKeyStore) Invalidate(ctx context.Context, accessKeyID string) error {
	return c.cache.Delete(ctx, c.keys.AccessKey(accessKeyID))
}

// Ensure CachedAccessKeyStore implements auth.AccessKeyStore
var _ auth.AccessKeyStore = (*CachedAccessKeyStore)(nil)
