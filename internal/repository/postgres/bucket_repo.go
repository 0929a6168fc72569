package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/repository"
)

// bucketRepository implements repository.BucketRepository for PostgreSQL.
type bucketRepository struct {
	db *DB
}

// NewBucketRepository creates a new PostgreSQL bucket repository.
func NewBucketRepository(db *DB) repository.BucketRepository {
	return &bucketRepository{db: db}
}

const bucketColumns = "id, owner_id, name, region, created_at"

// Create creates a new bucket.
func (r *bucketRepository) Create(ctx context.Context, bucket *domain.Bucket) error {
	query := `
		INSERT INTO buckets (owner_id, name, region, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		bucket.OwnerID,
		bucket.Name,
		bucket.Region,
		bucket.CreatedAt,
	).Scan(&bucket.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrBucketAlreadyExists
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// GetByID retrieves a bucket by ID.
func (r *bucketRepository) GetByID(ctx context.Context, id int64) (*domain.Bucket, error) {
	query := `SELECT ` + bucketColumns + ` FROM buckets WHERE id = $1`
	return r.scanBucket(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByName retrieves a bucket by name.
func (r *bucketRepository) GetByName(ctx context.Context, name string) (*domain.Bucket, error) {
	query := `SELECT ` + bucketColumns + ` FROM buckets WHERE name = $1`
	return r.scanBucket(r.db.Pool.QueryRow(ctx, query, name))
}

// List returns all buckets for a user (or all if userID is 0).
func (r *bucketRepository) List(ctx context.Context, userID int64) ([]*domain.Bucket, error) {
	query := `SELECT ` + bucketColumns + ` FROM buckets ORDER BY name`
	args := []any{}
	if userID != 0 {
		query = `SELECT ` + bucketColumns + ` FROM buckets WHERE owner_id = $1 ORDER BY name`
		args = append(args, userID)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*domain.Bucket
	for rows.Next() {
		bucket, err := r.scanBucket(rows)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate buckets: %w", err)
	}

	return buckets, nil
}

// Delete deletes a bucket by ID.
func (r *bucketRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM buckets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBucketNotFound
	}

	return nil
}

// DeleteByName deletes a bucket by name.
func (r *bucketRepository) DeleteByName(ctx context.Context, name string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM buckets WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBucketNotFound
	}

	return nil
}

// ExistsByName checks if a bucket with the given name exists.
func (r *bucketRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM buckets WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bucket: %w", err)
	}
	return exists, nil
}

// scanBucket scans a bucket row.
func (r *bucketRepository) scanBucket(row pgx.Row) (*domain.Bucket, error) {
	bucket := &domain.Bucket{}

	err := row.Scan(
		&bucket.ID,
		&bucket.OwnerID,
		&bucket.Name,
		&bucket.Region,
		&bucket.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBucketNotFound
		}
		return nil, fmt.Errorf("failed to scan bucket: %w", err)
	}

	return bucket, nil
}
