// Package repository defines data access interfaces for Emberstore.
// These interfaces abstract database operations, allowing for different implementations
// (PostgreSQL, SQLite, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/emberstore/emberstore/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// Delete deletes a user by ID.
	Delete(ctx context.Context, id int64) error

	// List returns all users with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Access Key Repository
// =============================================================================

// AccessKeyRepository defines the interface for access key data access.
type AccessKeyRepository interface {
	// Create creates a new access key.
	Create(ctx context.Context, key *domain.AccessKey) error

	// GetByID retrieves an access key by ID.
	GetByID(ctx context.Context, id int64) (*domain.AccessKey, error)

	// GetByAccessKeyID retrieves an access key by access key ID (the 20-char identifier).
	GetByAccessKeyID(ctx context.Context, accessKeyID string) (*domain.AccessKey, error)

	// GetActiveByAccessKeyID retrieves an active, non-expired access key.
	// This is the primary method used for authentication.
	GetActiveByAccessKeyID(ctx context.Context, accessKeyID string) (*domain.AccessKey, error)

	// ListByUserID returns all access keys for a user.
	ListByUserID(ctx context.Context, userID int64) ([]*domain.AccessKey, error)

	// Update updates an existing access key.
	Update(ctx context.Context, key *domain.AccessKey) error

	// UpdateLastUsed updates the last_used_at timestamp.
	UpdateLastUsed(ctx context.Context, id int64) error

	// Delete deletes an access key by ID.
	Delete(ctx context.Context, id int64) error

	// DeleteByAccessKeyID deletes an access key by access key ID.
	DeleteByAccessKeyID(ctx context.Context, accessKeyID string) error

	// DeleteExpired deletes all expired access keys.
	DeleteExpired(ctx context.Context) (int64, error)
}

// =============================================================================
// Bucket Repository
// =============================================================================

// BucketRepository defines the interface for bucket data access.
type BucketRepository interface {
	// Create creates a new bucket.
	Create(ctx context.Context, bucket *domain.Bucket) error

	// GetByID retrieves a bucket by ID.
	GetByID(ctx context.Context, id int64) (*domain.Bucket, error)

	// GetByName retrieves a bucket by name.
	GetByName(ctx context.Context, name string) (*domain.Bucket, error)

	// List returns all buckets for a user (or all if userID is 0).
	List(ctx context.Context, userID int64) ([]*domain.Bucket, error)

	// Delete deletes a bucket by ID.
	Delete(ctx context.Context, id int64) error

	// DeleteByName deletes a bucket by name.
	DeleteByName(ctx context.Context, name string) error

	// ExistsByName checks if a bucket with the given name exists.
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// =============================================================================
// Policy Repository
// =============================================================================

// PolicyRepository defines the interface for policy document data access.
type PolicyRepository interface {
	// Create creates a new policy document.
	Create(ctx context.Context, policy *domain.PolicyDocument) error

	// GetByID retrieves a policy by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PolicyDocument, error)

	// ListByBucket returns the policies attached to a bucket.
	// An unknown bucket yields an empty slice.
	ListByBucket(ctx context.Context, bucketName string) ([]*domain.PolicyDocument, error)

	// ListByUser returns the policies attached to a user.
	ListByUser(ctx context.Context, username string) ([]*domain.PolicyDocument, error)

	// Update replaces the document body of an existing policy.
	Update(ctx context.Context, policy *domain.PolicyDocument) error

	// Delete deletes a policy by ID.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByBucket deletes all policies attached to a bucket.
	// Returns the number of policies removed.
	DeleteByBucket(ctx context.Context, bucketName string) (int64, error)

	// DeleteByUser deletes all policies attached to a user.
	DeleteByUser(ctx context.Context, username string) (int64, error)
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return.
	Limit int

	// OrderBy specifies the sort order.
	OrderBy string

	// Descending specifies descending order if true.
	Descending bool
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []*T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}
