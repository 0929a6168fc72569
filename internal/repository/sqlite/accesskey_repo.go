package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/repository"
)

// accessKeyRepository implements repository.AccessKeyRepository for SQLite.
type accessKeyRepository struct {
	db *DB
}

// NewAccessKeyRepository creates a new SQLite access key repository.
func NewAccessKeyRepository(db *DB) repository.AccessKeyRepository {
	return &accessKeyRepository{db: db}
}

const accessKeyColumns = "id, user_id, access_key_id, encrypted_secret, description, status, created_at, expires_at, last_used_at"

// Create creates a new access key.
func (r *accessKeyRepository) Create(ctx context.Context, key *domain.AccessKey) error {
	query := `
		INSERT INTO access_keys (user_id, access_key_id, encrypted_secret, description, status, created_at, expires_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		key.UserID,
		key.AccessKeyID,
		key.EncryptedSecret,
		key.Description,
		key.Status,
		key.CreatedAt.Format(time.RFC3339),
		nullableTime(key.ExpiresAt),
		nullableTime(key.LastUsedAt),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("access key ID already exists: %w", err)
		}
		return fmt.Errorf("failed to create access key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	key.ID = id

	return nil
}

// GetByID retrieves an access key by ID.
func (r *accessKeyRepository) GetByID(ctx context.Context, id int64) (*domain.AccessKey, error) {
	query := `SELECT ` + accessKeyColumns + ` FROM access_keys WHERE id = ?`
	return r.scanAccessKey(r.db.QueryRowContext(ctx, query, id))
}

// GetByAccessKeyID retrieves an access key by access key ID (20-char identifier).
func (r *accessKeyRepository) GetByAccessKeyID(ctx context.Context, accessKeyID string) (*domain.AccessKey, error) {
	query := `SELECT ` + accessKeyColumns + ` FROM access_keys WHERE access_key_id = ?`
	return r.scanAccessKey(r.db.QueryRowContext(ctx, query, accessKeyID))
}

// GetActiveByAccessKeyID retrieves an active, non-expired access key.
// The expiry comparison happens in SQL so the row never leaves the database
// once the key has lapsed.
func (r *accessKeyRepository) GetActiveByAccessKeyID(ctx context.Context, accessKeyID string) (*domain.AccessKey, error) {
	query := `
		SELECT ` + accessKeyColumns + `
		FROM access_keys
		WHERE access_key_id = ?
		  AND status = ?
		  AND (expires_at IS NULL OR expires_at > ?)
	`
	now := time.Now().UTC().Format(time.RFC3339)
	return r.scanAccessKey(r.db.QueryRowContext(ctx, query, accessKeyID, domain.AccessKeyStatusActive, now))
}

// ListByUserID returns all access keys for a user.
func (r *accessKeyRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.AccessKey, error) {
	query := `SELECT ` + accessKeyColumns + ` FROM access_keys WHERE user_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access keys: %w", err)
	}
	defer rows.Close()

	var keys []*domain.AccessKey
	for rows.Next() {
		key, err := r.scanAccessKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate access keys: %w", err)
	}

	return keys, nil
}

// Update updates an existing access key.
func (r *accessKeyRepository) Update(ctx context.Context, key *domain.AccessKey) error {
	query := `
		UPDATE access_keys
		SET description = ?, status = ?, expires_at = ?, last_used_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		key.Description,
		key.Status,
		nullableTime(key.ExpiresAt),
		nullableTime(key.LastUsedAt),
		key.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update access key: %w", err)
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

// UpdateLastUsed updates the last_used_at timestamp.
func (r *accessKeyRepository) UpdateLastUsed(ctx context.Context, id int64) error {
	query := `UPDATE access_keys SET last_used_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}
	return nil
}

// Delete deletes an access key by ID.
func (r *accessKeyRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM access_keys WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete access key: %w", err)
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

// DeleteByAccessKeyID deletes an access key by access key ID.
func (r *accessKeyRepository) DeleteByAccessKeyID(ctx context.Context, accessKeyID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM access_keys WHERE access_key_id = ?`, accessKeyID)
	if err != nil {
		return fmt.Errorf("failed to delete access key: %w", err)
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

// DeleteExpired deletes all expired access keys.
func (r *accessKeyRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM access_keys WHERE expires_at IS NOT NULL AND expires_at <= ?`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired access keys: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}

// scanAccessKey scans an access key row.
func (r *accessKeyRepository) scanAccessKey(row rowScanner) (*domain.AccessKey, error) {
	key := &domain.AccessKey{}
	var createdAt string
	var expiresAt, lastUsedAt sql.NullString

	err := row.Scan(
		&key.ID,
		&key.UserID,
		&key.AccessKeyID,
		&key.EncryptedSecret,
		&key.Description,
		&key.Status,
		&createdAt,
		&expiresAt,
		&lastUsedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan access key: %w", err)
	}

	key.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	key.ExpiresAt = parseNullableTime(expiresAt)
	key.LastUsedAt = parseNullableTime(lastUsedAt)

	return key, nil
}
