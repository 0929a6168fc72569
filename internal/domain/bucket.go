// Package domain contains the core business entities for Emberstore.
package domain

import (
	"regexp"
	"strings"
	"time"
)

// BucketResourcePrefix is the namespace prefix for bucket resources
// in policy documents: emr:bucket:<name>[/<key>].
const BucketResourcePrefix = "emr:bucket:"

// bucketNameRegex validates S3-compliant bucket names.
// Rules: 3-63 characters, lowercase letters, numbers, hyphens, periods.
// Must start and end with letter or number.
var bucketNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// Bucket represents an S3-compatible storage bucket.
// Buckets are containers for objects and the attachment point for
// bucket-scoped access policies.
type Bucket struct {
	// ID is the unique identifier for the bucket.
	ID int64 `json:"id"`

	// OwnerID is the ID of the user who owns this bucket.
	OwnerID int64 `json:"owner_id"`

	// Name is the globally unique bucket name.
	// Constraints: 3-63 characters, lowercase, alphanumeric with hyphens/periods.
	Name string `json:"name"`

	// Region is the geographic region where the bucket is located.
	// Default: "us-east-1"
	Region string `json:"region"`

	// CreatedAt is the timestamp when the bucket was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewBucket creates a new Bucket with default values.
func NewBucket(ownerID int64, name string) *Bucket {
	return &Bucket{
		OwnerID:   ownerID,
		Name:      name,
		Region:    "us-east-1",
		CreatedAt: time.Now().UTC(),
	}
}

// Resource returns the policy resource identifier for the bucket itself.
func (b *Bucket) Resource() string {
	return BucketResourcePrefix + b.Name
}

// ObjectResource returns the policy resource identifier for a key in the bucket.
func (b *Bucket) ObjectResource(key string) string {
	return BucketResourcePrefix + b.Name + "/" + strings.TrimPrefix(key, "/")
}

// ValidateBucketName checks if the bucket name follows S3 naming conventions.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return ErrBucketNameLength
	}

	if !bucketNameRegex.MatchString(name) {
		return ErrBucketNameFormat
	}

	// Additional checks for IP-like names
	if isIPAddress(name) {
		return ErrBucketNameIPFormat
	}

	return nil
}

// isIPAddress checks if the string looks like an IP address.
func isIPAddress(s string) bool {
	ipRegex := regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	return ipRegex.MatchString(s)
}
