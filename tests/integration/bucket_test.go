// Package integration provides end-to-end tests for the Emberstore S3 API.
// They run against a live server and are skipped in short mode.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

// TestConfig holds the configuration for integration tests.
type TestConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// getTestConfig reads test configuration from environment variables.
func getTestConfig() TestConfig {
	return TestConfig{
		Endpoint:        getEnv("EMBERSTORE_ENDPOINT", "http://localhost:8080"),
		AccessKeyID:     getEnv("EMBERSTORE_ACCESS_KEY_ID", "test-access-key"),
		SecretAccessKey: getEnv("EMBERSTORE_SECRET_ACCESS_KEY", "test-secret-key"),
		Region:          getEnv("EMBERSTORE_REGION", "us-east-1"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// newS3Client creates a new S3 client configured for Emberstore.
func newS3Client(t *testing.T, cfg TestConfig) *s3.Client {
	t.Helper()

	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				SigningRegion:     cfg.Region,
			}, nil
		},
	)

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithEndpointResolverWithOptions(customResolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	require.NoError(t, err)

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
}

// TestBucketOperations tests basic bucket CRUD operations.
func TestBucketOperations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := getTestConfig()
	client := newS3Client(t, cfg)
	ctx := context.Background()

	bucketName := "test-bucket-" + time.Now().Format("20060102150405")

	t.Run("CreateBucket", func(t *testing.T) {
		_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(bucketName),
		})
		require.NoError(t, err)
	})

	t.Run("HeadBucket", func(t *testing.T) {
		_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucketName),
		})
		require.NoError(t, err)
	})

	t.Run("ListBuckets", func(t *testing.T) {
		result, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
		require.NoError(t, err)

		found := false
		for _, bucket := range result.Buckets {
			if *bucket.Name == bucketName {
				found = true
				break
			}
		}
		require.True(t, found, "created bucket should appear in list")
	})

	t.Run("DeleteBucket", func(t *testing.T) {
		_, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{
			Bucket: aws.String(bucketName),
		})
		require.NoError(t, err)
	})

	t.Run("HeadBucket_NotFound", func(t *testing.T) {
		_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucketName),
		})
		require.Error(t, err)
	})
}

// TestBucketPolicyOperations tests the policy subresource.
func TestBucketPolicyOperations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := getTestConfig()
	client := newS3Client(t, cfg)
	ctx := context.Background()

	bucketName := "test-policy-" + time.Now().Format("20060102150405")

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{
			Bucket: aws.String(bucketName),
		})
	})

	policyDocument := fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Principal": "emr:anonymous",
			"Action": "s3:GetObject",
			"Resource": "emr:bucket:%s/*"
		}]
	}`, bucketName)

	t.Run("GetBucketPolicy_Initial", func(t *testing.T) {
		_, err := client.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{
			Bucket: aws.String(bucketName),
		})
		require.Error(t, err, "a fresh bucket has no policy")
	})

	t.Run("PutBucketPolicy", func(t *testing.T) {
		_, err := client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
			Bucket: aws.String(bucketName),
			Policy: aws.String(policyDocument),
		})
		require.NoError(t, err)
	})

	t.Run("GetBucketPolicy", func(t *testing.T) {
		result, err := client.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{
			Bucket: aws.String(bucketName),
		})
		require.NoError(t, err)
		require.NotNil(t, result.Policy)
		require.True(t, json.Valid([]byte(*result.Policy)))
	})

	t.Run("PutBucketPolicy_Invalid", func(t *testing.T) {
		_, err := client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
			Bucket: aws.String(bucketName),
			Policy: aws.String(`{"Statement": "not a statement"}`),
		})
		require.Error(t, err)
	})

	t.Run("DeleteBucketPolicy", func(t *testing.T) {
		_, err := client.DeleteBucketPolicy(ctx, &s3.DeleteBucketPolicyInput{
			Bucket: aws.String(bucketName),
		})
		require.NoError(t, err)

		_, err = client.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{
			Bucket: aws.String(bucketName),
		})
		require.Error(t, err)
	})
}

// TestSignatureRejection verifies that bad credentials are refused.
func TestSignatureRejection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := getTestConfig()
	ctx := context.Background()

	t.Run("WrongSecret", func(t *testing.T) {
		bad := cfg
		bad.SecretAccessKey = "definitely-not-the-secret-key-00"
		client := newS3Client(t, bad)

		_, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
		require.Error(t, err)
	})

	t.Run("UnknownAccessKey", func(t *testing.T) {
		bad := cfg
		bad.AccessKeyID = "AKIADOESNOTEXIST0000"
		client := newS3Client(t, bad)

		_, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
		require.Error(t, err)
	})
}
