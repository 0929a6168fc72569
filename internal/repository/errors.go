package repository

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCacheMiss indicates the key is absent from the cache.
	ErrCacheMiss = errors.New("cache miss")
)
