package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/repository"
)

// policyRepository implements repository.PolicyRepository for PostgreSQL.
type policyRepository struct {
	db *DB
}

// NewPolicyRepository creates a new PostgreSQL policy repository.
func NewPolicyRepository(db *DB) repository.PolicyRepository {
	return &policyRepository{db: db}
}

const policyColumns = "id, scope, bucket_name, username, document, created_at, updated_at"

// Create creates a new policy document.
func (r *policyRepository) Create(ctx context.Context, policy *domain.PolicyDocument) error {
	query := `
		INSERT INTO policies (id, scope, bucket_name, username, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		policy.ID,
		policy.Scope,
		emptyToNil(policy.BucketName),
		emptyToNil(policy.Username),
		[]byte(policy.Document),
		policy.CreatedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	return nil
}

// GetByID retrieves a policy by ID.
func (r *policyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PolicyDocument, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1`
	return r.scanPolicy(r.db.Pool.QueryRow(ctx, query, id))
}

// ListByBucket returns the policies attached to a bucket.
func (r *policyRepository) ListByBucket(ctx context.Context, bucketName string) ([]*domain.PolicyDocument, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE scope = $1 AND bucket_name = $2 ORDER BY created_at`
	return r.listPolicies(ctx, query, domain.PolicyScopeBucket, bucketName)
}

// ListByUser returns the policies attached to a user.
func (r *policyRepository) ListByUser(ctx context.Context, username string) ([]*domain.PolicyDocument, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE scope = $1 AND username = $2 ORDER BY created_at`
	return r.listPolicies(ctx, query, domain.PolicyScopeUser, username)
}

// Update replaces the document body of an existing policy.
func (r *policyRepository) Update(ctx context.Context, policy *domain.PolicyDocument) error {
	query := `UPDATE policies SET document = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.db.Pool.Exec(ctx, query, []byte(policy.Document), policy.UpdatedAt, policy.ID)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete deletes a policy by ID.
func (r *policyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteByBucket deletes all policies attached to a bucket.
func (r *policyRepository) DeleteByBucket(ctx context.Context, bucketName string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM policies WHERE scope = $1 AND bucket_name = $2`,
		domain.PolicyScopeBucket, bucketName,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bucket policies: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByUser deletes all policies attached to a user.
func (r *policyRepository) DeleteByUser(ctx context.Context, username string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM policies WHERE scope = $1 AND username = $2`,
		domain.PolicyScopeUser, username,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user policies: %w", err)
	}
	return tag.RowsAffected(), nil
}

// listPolicies runs a policy list query and scans the rows.
func (r *policyRepository) listPolicies(ctx context.Context, query string, args ...any) ([]*domain.PolicyDocument, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
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
func (r *policyRepository) scanPolicy(row pgx.Row) (*domain.PolicyDocument, error) {
	policy := &domain.PolicyDocument{}
	var bucketName, username *string
	var document []byte

	err := row.Scan(
		&policy.ID,
		&policy.Scope,
		&bucketName,
		&username,
		&document,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan policy: %w", err)
	}

	if bucketName != nil {
		policy.BucketName = *bucketName
	}
	if username != nil {
		policy.Username = *username
	}
	policy.Document = json.RawMessage(document)

	return policy, nil
}

// emptyToNil maps an empty string to a SQL NULL.
func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
