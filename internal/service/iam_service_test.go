package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/pkg/crypto"
)

func newTestEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()
	enc, err := crypto.NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return enc
}

func newTestIAMService(t *testing.T) (*IAMService, *MockAccessKeyRepository, *MockUserRepository) {
	t.Helper()
	keyRepo := NewMockAccessKeyRepository()
	userRepo := NewMockUserRepository()
	svc := NewIAMService(keyRepo, userRepo, newTestEncryptor(t), zerolog.Nop())
	return svc, keyRepo, userRepo
}

func TestIAMService_CreateAccessKey(t *testing.T) {
	svc, keyRepo, userRepo := newTestIAMService(t)
	user := newTestUser(userRepo, "alice", "some-password")
	ctx := context.Background()

	out, err := svc.CreateAccessKey(ctx, CreateAccessKeyInput{UserID: user.ID, Description: "ci"})
	require.NoError(t, err)
	require.Len(t, out.AccessKeyID, 20)
	require.Len(t, out.SecretKey, 40)
	require.Equal(t, domain.AccessKeyStatusActive, out.AccessKey.Status)
	require.Equal(t, "ci", out.AccessKey.Description)

	// The stored secret is encrypted, never the plaintext.
	stored, err := keyRepo.GetByAccessKeyID(ctx, out.AccessKeyID)
	require.NoError(t, err)
	require.NotEqual(t, out.SecretKey, stored.EncryptedSecret)
}

func TestIAMService_CreateAccessKey_Errors(t *testing.T) {
	svc, _, userRepo := newTestIAMService(t)
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.CreateAccessKey(ctx, CreateAccessKeyInput{UserID: 999})
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("inactive user", func(t *testing.T) {
		user := newTestUser(userRepo, "bob", "some-password")
		user.IsActive = false

		_, err := svc.CreateAccessKey(ctx, CreateAccessKeyInput{UserID: user.ID})
		require.ErrorIs(t, err, ErrUserInactive)
	})

	t.Run("key limit", func(t *testing.T) {
		user := newTestUser(userRepo, "carol", "some-password")
		for i := 0; i < MaxAccessKeysPerUser; i++ {
			_, err := svc.CreateAccessKey(ctx, CreateAccessKeyInput{UserID: user.ID})
			require.NoError(t, err)
		}

		_, err := svc.CreateAccessKey(ctx, CreateAccessKeyInput{UserID: user.ID})
		require.ErrorIs(t, err, ErrMaxAccessKeysReached)
	})
}

func TestIAMService_VerifyAccessKey(t *testing.T) {
	svc, keyRepo, userRepo := newTestIAMService(t)
	user := newTestUser(userRepo, "alice", "some-password", domain.RoleAdmin)
	ctx := context.Background()

	out, err := svc.CreateAccessKey(ctx, CreateAccessKeyInput{UserID: user.ID})
	require.NoError(t, err)

	t.Run("resolves identity and decrypted secret", func(t *testing.T) {
		info, err := svc.VerifyAccessKey(ctx, out.AccessKeyID)
		require.NoError(t, err)
		require.Equal(t, out.AccessKeyID, info.AccessKeyID)
		require.Equal(t, out.SecretKey, info.SecretKey)
		require.Equal(t, user.ID, info.UserID)
		require.Equal(t, "alice", info.Username)
		require.Contains(t, info.Roles, domain.RoleAdmin)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := svc.VerifyAccessKey(ctx, "AKIANOSUCHKEY0000000")
		require.ErrorIs(t, err, ErrAccessKeyNotFound)
	})

	t.Run("deactivated key", func(t *testing.T) {
		require.NoError(t, svc.DeactivateAccessKey(ctx, out.AccessKeyID))
		defer func() { require.NoError(t, svc.ActivateAccessKey(ctx, out.AccessKeyID)) }()

		_, err := svc.VerifyAccessKey(ctx, out.AccessKeyID)
		require.ErrorIs(t, err, ErrAccessKeyNotFound)
	})

	t.Run("expired key", func(t *testing.T) {
		past := time.Now().UTC().Add(-time.Hour)
		stored, err := keyRepo.GetByAccessKeyID(ctx, out.AccessKeyID)
		require.NoError(t, err)
		stored.ExpiresAt = &past
		defer func() { stored.ExpiresAt = nil }()

		_, err = svc.VerifyAccessKey(ctx, out.AccessKeyID)
		require.ErrorIs(t, err, ErrAccessKeyNotFound)
	})

	t.Run("inactive owner collapses to unknown key", func(t *testing.T) {
		user.IsActive = false
		defer func() { user.IsActive = true }()

		_, err := svc.VerifyAccessKey(ctx, out.AccessKeyID)
		require.ErrorIs(t, err, ErrAccessKeyNotFound)
	})
}

func TestIAMService_UpdateLastUsed(t *testing.T) {
	svc, keyRepo, userRepo := newTestIAMService(t)
	user := newTestUser(userRepo, "alice", "some-password")
	ctx := context.Background()

	out, err := svc.CreateAccessKey(ctx, CreateAccessKeyInput{UserID: user.ID})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateLastUsed(ctx, out.AccessKeyID))

	stored, err := keyRepo.GetByAccessKeyID(ctx, out.AccessKeyID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastUsedAt)
}

func TestIAMService_ListAccessKeys_ActiveOnly(t *testing.T) {
	svc, _, userRepo := newTestIAMService(t)
	user := newTestUser(userRepo, "alice", "some-password")
	ctx := context.Background()

	first, err := svc.CreateAccessKey(ctx, CreateAccessKeyInput{UserID: user.ID})
	require.NoError(t, err)
	_, err = svc.CreateAccessKey(ctx, CreateAccessKeyInput{UserID: user.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateAccessKey(ctx, first.AccessKeyID))

	all, err := svc.ListAccessKeys(ctx, ListAccessKeysInput{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)

	active, err := svc.ListAccessKeys(ctx, ListAccessKeysInput{UserID: user.ID, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestIAMService_DeleteAccessKey(t *testing.T) {
	svc, _, userRepo := newTestIAMService(t)
	user := newTestUser(userRepo, "alice", "some-password")
	ctx := context.Background()

	out, err := svc.CreateAccessKey(ctx, CreateAccessKeyInput{UserID: user.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccessKey(ctx, out.AccessKeyID))
	require.ErrorIs(t, svc.DeleteAccessKey(ctx, out.AccessKeyID), ErrAccessKeyNotFound)
}
