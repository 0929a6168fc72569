package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/repository"
)

// policyRepository implements repository.PolicyRepository for SQLite.
type policyRepository struct {
	db *DB
}

// NewPolicyRepository creates a new SQLite policy repository.
func NewPolicyRepository(db *DB) repository.PolicyRepository {
	return &policyRepository{db: db}
}

const policyColumns = "id, scope, bucket_name, username, document, created_at, updated_at"

// Create creates a new policy document.
func (r *policyRepository) Create(ctx context.Context, policy *domain.PolicyDocument) error {
	query := `
		INSERT INTO policies (id, scope, bucket_name, username, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		policy.ID.String(),
		policy.Scope,
		nullableString(policy.BucketName),
		nullableString(policy.Username),
		string(policy.Document),
		policy.CreatedAt.Format(time.RFC3339),
		policy.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	return nil
}

// GetByID retrieves a policy by ID.
func (r *policyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PolicyDocument, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = ?`
	return r.scanPolicy(r.db.QueryRowContext(ctx, query, id.String()))
}

// ListByBucket returns the policies attached to a bucket.
func (r *policyRepository) ListByBucket(ctx context.Context, bucketName string) ([]*domain.PolicyDocument, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE scope = ? AND bucket_name = ? ORDER BY created_at`
	return r.listPolicies(ctx, query, domain.PolicyScopeBucket, bucketName)
}

// ListByUser returns the policies attached to a user.
func (r *policyRepository) ListByUser(ctx context.Context, username string) ([]*domain.PolicyDocument, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE scope = ? AND username = ? ORDER BY created_at`
	return r.listPolicies(ctx, query, domain.PolicyScopeUser, username)
}

// Update replaces the document body of an existing policy.
func (r *policyRepository) Update(ctx context.Context, policy *domain.PolicyDocument) error {
	query := `UPDATE policies SET document = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(policy.Document),
		policy.UpdatedAt.Format(time.RFC3339),
		policy.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
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

// Delete deletes a policy by ID.
func (r *policyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM policies WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
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

// DeleteByBucket deletes all policies attached to a bucket.
func (r *policyRepository) DeleteByBucket(ctx context.Context, bucketName string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM policies WHERE scope = ? AND bucket_name = ?`,
		domain.PolicyScopeBucket, bucketName,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bucket policies: %w", err)
	}
	return result.RowsAffected()
}

// DeleteByUser deletes all policies attached to a user.
func (r *policyRepository) DeleteByUser(ctx context.Context, username string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM policies WHERE scope = ? AND username = ?`,
		domain.PolicyScopeUser, username,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user policies: %w", err)
	}
	return result.RowsAffected()
}

// listPolicies runs a policy list query and scans the rows.
func (r *policyRepository) listPolicies(ctx context.Context, query string, args ...interface{}) ([]*domain.PolicyDocument, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var policies []*domain.PolicyDocument
	for rows.Next() {
		policy, err := r.scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policies: %w", err)
	}

	return policies, nil
}

// scanPolicy scans a policy row.
func (r *policyRepository) scanPolicy(row rowScanner) (*domain.PolicyDocument, error) {
	policy := &domain.PolicyDocument{}
	var id, document, createdAt, updatedAt string
	var bucketName, username sql.NullString

	err := row.Scan(
		&id,
		&policy.Scope,
		&bucketName,
		&username,
		&document,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan policy: %w", err)
	}

	policy.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy ID: %w", err)
	}
	policy.BucketName = bucketName.String
	policy.Username = username.String
	policy.Document = json.RawMessage(document)
	policy.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	policy.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return policy, nil
}

// nullableString converts an optional string to a nullable column value.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
