package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/repository"
)

// bucketRepository implements repository.BucketRepository for SQLite.
type bucketRepository struct {
	db *DB
}

// NewBucketRepository creates a new SQLite bucket repository.
func NewBucketRepository(db *DB) repository.BucketRepository {
	return &bucketRepository{db: db}
}

const bucketColumns = "id, owner_id, name, region, created_at"

// Create creates a new bucket.
func (r *bucketRepository) Create(ctx context.Context, bucket *domain.Bucket) error {
	query := `
		INSERT INTO buckets (owner_id, name, region, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		bucket.OwnerID,
		bucket.Name,
		bucket.Region,
		bucket.CreatedAt.Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrBucketAlreadyExists, bucket.Name)
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	bucket.ID = id

	return nil
}

// GetByID retrieves a bucket by ID.
func (r *bucketRepository) GetByID(ctx context.Context, id int64) (*domain.Bucket, error) {
	query := `SELECT ` + bucketColumns + ` FROM buckets WHERE id = ?`
	return r.scanBucket(r.db.QueryRowContext(ctx, query, id))
}

// GetByName retrieves a bucket by name.
func (r *bucketRepository) GetByName(ctx context.Context, name string) (*domain.Bucket, error) {
	query := `SELECT ` + bucketColumns + ` FROM buckets WHERE name = ?`
	return r.scanBucket(r.db.QueryRowContext(ctx, query, name))
}

// List returns all buckets for a user (or all if userID is 0).
func (r *bucketRepository) List(ctx context.Context, userID int64) ([]*domain.Bucket, error) {
	query := `SELECT ` + bucketColumns + ` FROM buckets ORDER BY name`
	args := []interface{}{}
	if userID != 0 {
		query = `SELECT ` + bucketColumns + ` FROM buckets WHERE owner_id = ? ORDER BY name`
		args = append(args, userID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	result, err := r.db.ExecContext(ctx, `DELETE FROM buckets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteByName deletes a bucket by name.
func (r *bucketRepository) DeleteByName(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM buckets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ExistsByName checks if a bucket with the given name exists.
func (r *bucketRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM buckets WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bucket name: %w", err)
	}
	return exists != 0, nil
}

// scanBucket scans a bucket row.
func (r *bucketRepository) scanBucket(row rowScanner) (*domain.Bucket, error) {
	bucket := &domain.Bucket{}
	var createdAt string

	err := row.Scan(
		&bucket.ID,
		&bucket.OwnerID,
		&bucket.Name,
		&bucket.Region,
		&createdAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrBucketNotFound
		}
		return nil, fmt.Errorf("failed to scan bucket: %w", err)
	}

	bucket.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return bucket, nil
}
