// Package repository provides the data access layer for Emberstore.
// This file contains the repository bundle and health abstraction used by
// the composition root to wire a concrete backend.
package repository

import (
	"context"
)

// Repositories holds all repository instances.
type Repositories struct {
	User      UserRepository
	AccessKey AccessKeyRepository
	Bucket    BucketRepository
	Policy    PolicyRepository
}

// DatabaseHealth is an interface for database health checks.
// Both the sqlite and postgres DB wrappers satisfy it.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
