package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(context.Background(), DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func seedUser(t *testing.T, repo repository.UserRepository, username string) *domain.User {
	t.Helper()

	user := domain.NewUser(username, username+"@example.com", "$2a$10$notarealhash")
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestUserRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("create and fetch", func(t *testing.T) {
		user := seedUser(t, repo, "alice")
		require.NotZero(t, user.ID)

		got, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
		require.Equal(t, "alice@example.com", got.Email)
		require.Equal(t, []string{domain.RoleUser}, got.Roles)
		require.True(t, got.IsActive)
	})

	t.Run("duplicate username", func(t *testing.T) {
		dup := domain.NewUser("alice", "other@example.com", "hash")
		require.ErrorIs(t, repo.Create(ctx, dup), domain.ErrUserAlreadyExists)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByUsername(ctx, "nobody")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("roles round-trip", func(t *testing.T) {
		user := seedUser(t, repo, "admin")
		user.AddRole(domain.RoleAdmin)
		require.NoError(t, repo.Update(ctx, user))

		got, err := repo.GetByUsername(ctx, "admin")
		require.NoError(t, err)
		require.ElementsMatch(t, []string{domain.RoleUser, domain.RoleAdmin}, got.Roles)
	})

	t.Run("exists checks", func(t *testing.T) {
		exists, err := repo.ExistsByUsername(ctx, "alice")
		require.NoError(t, err)
		require.True(t, exists)

		exists, err = repo.ExistsByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("delete", func(t *testing.T) {
		user := seedUser(t, repo, "shortlived")
		require.NoError(t, repo.Delete(ctx, user.ID))
		require.ErrorIs(t, repo.Delete(ctx, user.ID), repository.ErrNotFound)
	})
}

func TestAccessKeyRepository(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	repo := NewAccessKeyRepository(db)
	ctx := context.Background()

	owner := seedUser(t, users, "alice")

	t.Run("active lookup honors status", func(t *testing.T) {
		key := domain.NewAccessKey(owner.ID, "AKIAACTIVEKEY0000001", "encrypted-blob")
		require.NoError(t, repo.Create(ctx, key))

		got, err := repo.GetActiveByAccessKeyID(ctx, key.AccessKeyID)
		require.NoError(t, err)
		require.Equal(t, key.ID, got.ID)

		got.Status = domain.AccessKeyStatusInactive
		require.NoError(t, repo.Update(ctx, got))

		_, err = repo.GetActiveByAccessKeyID(ctx, key.AccessKeyID)
		require.ErrorIs(t, err, repository.ErrNotFound)

		// Still visible through the unfiltered lookup.
		_, err = repo.GetByAccessKeyID(ctx, key.AccessKeyID)
		require.NoError(t, err)
	})

	t.Run("active lookup honors expiry", func(t *testing.T) {
		expired := domain.NewAccessKey(owner.ID, "AKIAEXPIREDKEY000001", "encrypted-blob")
		past := time.Now().UTC().Add(-time.Hour)
		expired.ExpiresAt = &past
		require.NoError(t, repo.Create(ctx, expired))

		_, err := repo.GetActiveByAccessKeyID(ctx, expired.AccessKeyID)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("update last used", func(t *testing.T) {
		key := domain.NewAccessKey(owner.ID, "AKIALASTUSEDKEY00001", "encrypted-blob")
		require.NoError(t, repo.Create(ctx, key))
		require.Nil(t, key.LastUsedAt)

		require.NoError(t, repo.UpdateLastUsed(ctx, key.ID))

		got, err := repo.GetByID(ctx, key.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastUsedAt)
	})

	t.Run("delete expired", func(t *testing.T) {
		count, err := repo.DeleteExpired(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), count)

		keys, err := repo.ListByUserID(ctx, owner.ID)
		require.NoError(t, err)
		for _, k := range keys {
			require.False(t, k.IsExpired())
		}
	})
}

func TestBucketRepository(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	repo := NewBucketRepository(db)
	ctx := context.Background()

	owner := seedUser(t, users, "alice")

	t.Run("create and fetch", func(t *testing.T) {
		bucket := domain.NewBucket(owner.ID, "photos")
		require.NoError(t, repo.Create(ctx, bucket))
		require.NotZero(t, bucket.ID)

		got, err := repo.GetByName(ctx, "photos")
		require.NoError(t, err)
		require.Equal(t, owner.ID, got.OwnerID)

		require.ErrorIs(t, repo.Create(ctx, domain.NewBucket(owner.ID, "photos")), domain.ErrBucketAlreadyExists)
	})

	t.Run("list by owner", func(t *testing.T) {
		other := seedUser(t, users, "bob")
		require.NoError(t, repo.Create(ctx, domain.NewBucket(other.ID, "bob-data")))

		mine, err := repo.List(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, mine, 1)

		all, err := repo.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 2)
	})

	t.Run("delete by name", func(t *testing.T) {
		require.NoError(t, repo.DeleteByName(ctx, "photos"))
		_, err := repo.GetByName(ctx, "photos")
		require.ErrorIs(t, err, domain.ErrBucketNotFound)

		require.ErrorIs(t, repo.DeleteByName(ctx, "photos"), domain.ErrBucketNotFound)
	})
}

func TestPolicyRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewPolicyRepository(db)
	ctx := context.Background()

	document := json.RawMessage(`{"Statement": [{"Effect": "Allow", "Principal": "*", "Action": "s3:GetObject", "Resource": "emr:bucket:photos/*"}]}`)

	t.Run("bucket scope round-trip", func(t *testing.T) {
		policy := domain.NewBucketPolicy("photos", document)
		require.NoError(t, repo.Create(ctx, policy))

		got, err := repo.GetByID(ctx, policy.ID)
		require.NoError(t, err)
		require.Equal(t, domain.PolicyScopeBucket, got.Scope)
		require.JSONEq(t, string(document), string(got.Document))

		listed, err := repo.ListByBucket(ctx, "photos")
		require.NoError(t, err)
		require.Len(t, listed, 1)
	})

	t.Run("update document", func(t *testing.T) {
		listed, err := repo.ListByBucket(ctx, "photos")
		require.NoError(t, err)
		require.Len(t, listed, 1)

		updated := listed[0]
		updated.Document = json.RawMessage(`{"Statement": []}`)
		require.NoError(t, repo.Update(ctx, updated))

		got, err := repo.GetByID(ctx, updated.ID)
		require.NoError(t, err)
		require.JSONEq(t, `{"Statement": []}`, string(got.Document))
	})

	t.Run("user scope accumulates", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, domain.NewUserPolicy("alice", document)))
		require.NoError(t, repo.Create(ctx, domain.NewUserPolicy("alice", document)))

		listed, err := repo.ListByUser(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, listed, 2)

		count, err := repo.DeleteByUser(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, int64(2), count)
	})

	t.Run("delete by id", func(t *testing.T) {
		listed, err := repo.ListByBucket(ctx, "photos")
		require.NoError(t, err)
		require.Len(t, listed, 1)

		require.NoError(t, repo.Delete(ctx, listed[0].ID))
		require.ErrorIs(t, repo.Delete(ctx, listed[0].ID), repository.ErrNotFound)

		_, err = repo.GetByID(ctx, listed[0].ID)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}
