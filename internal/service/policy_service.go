package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/iam"
	"github.com/emberstore/emberstore/internal/lock"
	"github.com/emberstore/emberstore/internal/repository"
)

const (
	// policyWriteLockTTL bounds how long a policy write can hold its lock.
	policyWriteLockTTL = 10 * time.Second

	// policyCacheTTL bounds staleness of cached policy lists across nodes.
	policyCacheTTL = time.Minute

	policyLockRetries    = 3
	policyLockRetryDelay = 100 * time.Millisecond
)

// PolicyService manages policy documents attached to buckets and users.
// Writes on the same attachment point are serialized through the locker so
// concurrent puts cannot interleave their delete-then-create sequences.
type PolicyService struct {
	policyRepo repository.PolicyRepository
	bucketRepo repository.BucketRepository
	userRepo   repository.UserRepository
	cache      repository.Cache
	locker     lock.Locker
	logger     zerolog.Logger

	cacheKeys repository.CacheKey
	lockKeys  repository.LockKey
}

// NewPolicyService creates a new PolicyService.
func NewPolicyService(
	policyRepo repository.PolicyRepository,
	bucketRepo repository.BucketRepository,
	userRepo repository.UserRepository,
	cache repository.Cache,
	locker lock.Locker,
	logger zerolog.Logger,
) *PolicyService {
	return &PolicyService{
		policyRepo: policyRepo,
		bucketRepo: bucketRepo,
		userRepo:   userRepo,
		cache:      cache,
		locker:     locker,
		logger:     logger.With().Str("service", "policy").Logger(),
	}
}

// PutBucketPolicy attaches a policy document to a bucket, replacing any
// existing one. The document must parse to at least one valid statement.
func (s *PolicyService) PutBucketPolicy(ctx context.Context, bucketName string, document json.RawMessage) (*domain.PolicyDocument, error) {
	if _, err := s.bucketRepo.GetByName(ctx, bucketName); err != nil {
		if errors.Is(err, domain.ErrBucketNotFound) || errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBucketNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if len(iam.ParseStatements(document)) == 0 {
		return nil, ErrInvalidPolicy
	}

	lockKey := s.lockKeys.BucketPolicyWrite(bucketName)
	release, err := s.acquireLock(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	policy := domain.NewBucketPolicy(bucketName, document)

	existing, err := s.policyRepo.ListByBucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if len(existing) > 0 {
		// Replace in place, keeping the original ID stable for callers.
		policy.ID = existing[0].ID
		policy.CreatedAt = existing[0].CreatedAt
		if err := s.policyRepo.Update(ctx, policy); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		for _, extra := range existing[1:] {
			if err := s.policyRepo.Delete(ctx, extra.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
			}
		}
	} else {
		if err := s.policyRepo.Create(ctx, policy); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
	}

	s.invalidateBucket(ctx, bucketName)

	s.logger.Info().
		Str("bucket", bucketName).
		Str("policy_id", policy.ID.String()).
		Msg("bucket policy stored")

	return policy, nil
}

// GetBucketPolicy returns the policy attached to a bucket.
func (s *PolicyService) GetBucketPolicy(ctx context.Context, bucketName string) (*domain.PolicyDocument, error) {
	if _, err := s.bucketRepo.GetByName(ctx, bucketName); err != nil {
		if errors.Is(err, domain.ErrBucketNotFound) || errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBucketNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	policies, err := s.policyRepo.ListByBucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if len(policies) == 0 {
		return nil, ErrPolicyNotFound
	}

	return policies[0], nil
}

// DeleteBucketPolicy removes the policy attached to a bucket.
// Deleting a bucket with no policy is not an error.
func (s *PolicyService) DeleteBucketPolicy(ctx context.Context, bucketName string) error {
	if _, err := s.bucketRepo.GetByName(ctx, bucketName); err != nil {
		if errors.Is(err, domain.ErrBucketNotFound) || errors.Is(err, repository.ErrNotFound) {
			return ErrBucketNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	lockKey := s.lockKeys.BucketPolicyWrite(bucketName)
	release, err := s.acquireLock(ctx, lockKey)
	if err != nil {
		return err
	}
	defer release()

	count, err := s.policyRepo.DeleteByBucket(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.invalidateBucket(ctx, bucketName)

	if count > 0 {
		s.logger.Info().Str("bucket", bucketName).Msg("bucket policy deleted")
	}

	return nil
}

// PutUserPolicy attaches a policy document to a user. Unlike bucket
// policies, a user may hold several policy documents at once.
func (s *PolicyService) PutUserPolicy(ctx context.Context, username string, document json.RawMessage) (*domain.PolicyDocument, error) {
	if _, err := s.userRepo.GetByUsername(ctx, username); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if len(iam.ParseStatements(document)) == 0 {
		return nil, ErrInvalidPolicy
	}

	lockKey := s.lockKeys.UserPolicyWrite(username)
	release, err := s.acquireLock(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	policy := domain.NewUserPolicy(username, document)

	if err := s.policyRepo.Create(ctx, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.invalidateUser(ctx, username)

	s.logger.Info().
		Str("username", username).
		Str("policy_id", policy.ID.String()).
		Msg("user policy stored")

	return policy, nil
}

// ListUserPolicies returns all policy documents attached to a user.
func (s *PolicyService) ListUserPolicies(ctx context.Context, username string) ([]*domain.PolicyDocument, error) {
	policies, err := s.policyRepo.ListByUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return policies, nil
}

// DeleteUserPolicy removes a single user policy document by ID.
func (s *PolicyService) DeleteUserPolicy(ctx context.Context, id uuid.UUID) error {
	policy, err := s.policyRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPolicyNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.policyRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPolicyNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	switch policy.Scope {
	case domain.PolicyScopeBucket:
		s.invalidateBucket(ctx, policy.BucketName)
	case domain.PolicyScopeUser:
		s.invalidateUser(ctx, policy.Username)
	}

	s.logger.Info().Str("policy_id", id.String()).Msg("policy deleted")
	return nil
}

// DeletePoliciesForUser removes every policy attached to a user, typically
// when the user is deleted.
func (s *PolicyService) DeletePoliciesForUser(ctx context.Context, username string) (int64, error) {
	count, err := s.policyRepo.DeleteByUser(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.invalidateUser(ctx, username)
	return count, nil
}

// GetPoliciesForBucket implements iam.PolicyFinder. Results pass through
// the cache so hot buckets do not hit the database on every request.
func (s *PolicyService) GetPoliciesForBucket(ctx context.Context, bucketName string) ([]*domain.PolicyDocument, error) {
	cacheKey := s.cacheKeys.BucketPolicies(bucketName)
	if policies, ok := s.cachedPolicies(ctx, cacheKey); ok {
		return policies, nil
	}

	policies, err := s.policyRepo.ListByBucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.storePolicies(ctx, cacheKey, policies)
	return policies, nil
}

// GetPoliciesForUser implements iam.PolicyFinder.
func (s *PolicyService) GetPoliciesForUser(ctx context.Context, username string) ([]*domain.PolicyDocument, error) {
	cacheKey := s.cacheKeys.UserPolicies(username)
	if policies, ok := s.cachedPolicies(ctx, cacheKey); ok {
		return policies, nil
	}

	policies, err := s.policyRepo.ListByUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.storePolicies(ctx, cacheKey, policies)
	return policies, nil
}

// acquireLock takes the write lock for a policy attachment point and
// returns its release func.
func (s *PolicyService) acquireLock(ctx context.Context, key string) (func(), error) {
	acquired, err := s.locker.AcquireWithRetry(ctx, key, policyWriteLockTTL, policyLockRetries, policyLockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return nil, ErrPolicyLockBusy
	}

	return func() {
		if _, err := s.locker.Release(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("lock_key", key).Msg("failed to release policy lock")
		}
	}, nil
}

func (s *PolicyService) cachedPolicies(ctx context.Context, key string) ([]*domain.PolicyDocument, bool) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("policy cache read failed")
		}
		return nil, false
	}

	var policies []*domain.PolicyDocument
	if err := json.Unmarshal(data, &policies); err != nil {
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}

	return policies, true
}

func (s *PolicyService) storePolicies(ctx context.Context, key string, policies []*domain.PolicyDocument) {
	data, err := json.Marshal(policies)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, policyCacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("policy cache write failed")
	}
}

func (s *PolicyService) invalidateBucket(ctx context.Context, bucketName string) {
	if err := s.cache.Delete(ctx, s.cacheKeys.BucketPolicies(bucketName)); err != nil {
		s.logger.Warn().Err(err).Str("bucket", bucketName).Msg("failed to invalidate policy cache")
	}
}

func (s *PolicyService) invalidateUser(ctx context.Context, username string) {
	if err := s.cache.Delete(ctx, s.cacheKeys.UserPolicies(username)); err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("failed to invalidate policy cache")
	}
}

// Ensure PolicyService implements iam.PolicyFinder
var _ iam.PolicyFinder = (*PolicyService)(nil)
