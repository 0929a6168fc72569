package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/repository"
)

// BucketService handles bucket metadata operations.
type BucketService struct {
	bucketRepo repository.BucketRepository
	policyRepo repository.PolicyRepository
	logger     zerolog.Logger
}

// NewBucketService creates a new BucketService.
func NewBucketService(
	bucketRepo repository.BucketRepository,
	policyRepo repository.PolicyRepository,
	logger zerolog.Logger,
) *BucketService {
	return &BucketService{
		bucketRepo: bucketRepo,
		policyRepo: policyRepo,
		logger:     logger.With().Str("service", "bucket").Logger(),
	}
}

// CreateBucketInput contains the data needed to create a bucket.
type CreateBucketInput struct {
	OwnerID int64
	Name    string
	Region  string
}

// CreateBucket creates a new bucket.
func (s *BucketService) CreateBucket(ctx context.Context, input CreateBucketInput) (*domain.Bucket, error) {
	if err := domain.ValidateBucketName(input.Name); err != nil {
		return nil, err
	}

	exists, err := s.bucketRepo.ExistsByName(ctx, input.Name)
	if err != nil {
		s.logger.Error().Err(err).Str("bucket", input.Name).Msg("failed to check bucket existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, ErrBucketAlreadyExists
	}

	bucket := domain.NewBucket(input.OwnerID, input.Name)
	if input.Region != "" {
		bucket.Region = input.Region
	}

	if err := s.bucketRepo.Create(ctx, bucket); err != nil {
		s.logger.Error().Err(err).Str("bucket", input.Name).Msg("failed to create bucket")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("owner_id", input.OwnerID).
		Str("bucket", bucket.Name).
		Msg("bucket created")

	return bucket, nil
}

// GetBucket retrieves a bucket by name.
func (s *BucketService) GetBucket(ctx context.Context, name string) (*domain.Bucket, error) {
	bucket, err := s.bucketRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrBucketNotFound) || errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBucketNotFound
		}
		s.logger.Error().Err(err).Str("bucket", name).Msg("failed to get bucket")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return bucket, nil
}

// ListBuckets returns the buckets owned by a user, or all buckets when
// ownerID is 0.
func (s *BucketService) ListBuckets(ctx context.Context, ownerID int64) ([]*domain.Bucket, error) {
	buckets, err := s.bucketRepo.List(ctx, ownerID)
	if err != nil {
		s.logger.Error().Err(err).Int64("owner_id", ownerID).Msg("failed to list buckets")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return buckets, nil
}

// DeleteBucket deletes a bucket and any policies attached to it.
func (s *BucketService) DeleteBucket(ctx context.Context, name string) error {
	if err := s.bucketRepo.DeleteByName(ctx, name); err != nil {
		if errors.Is(err, domain.ErrBucketNotFound) || errors.Is(err, repository.ErrNotFound) {
			return ErrBucketNotFound
		}
		s.logger.Error().Err(err).Str("bucket", name).Msg("failed to delete bucket")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	count, err := s.policyRepo.DeleteByBucket(ctx, name)
	if err != nil {
		// The bucket is already gone; orphaned policies only waste rows.
		s.logger.Warn().Err(err).Str("bucket", name).Msg("failed to delete bucket policies")
	} else if count > 0 {
		s.logger.Info().Str("bucket", name).Int64("policies", count).Msg("bucket policies removed")
	}

	s.logger.Info().Str("bucket", name).Msg("bucket deleted")
	return nil
}
