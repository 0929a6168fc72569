// Package domain contains the core business entities for Emberstore.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PolicyScope identifies what a policy document is attached to.
type PolicyScope string

const (
	// PolicyScopeBucket attaches a policy to a bucket. Statements are
	// filtered to resources under the bucket before evaluation.
	PolicyScopeBucket PolicyScope = "bucket"

	// PolicyScopeUser attaches a policy to a user. Statement principals
	// are overridden with the owning user's principal before evaluation.
	PolicyScopeUser PolicyScope = "user"
)

// PolicyDocument is a stored IAM-style policy. The document body is kept as
// the raw JSON the caller supplied; normalization into statements happens at
// evaluation time so that a later fix to the evaluator does not require
// rewriting stored policies.
type PolicyDocument struct {
	// ID is the unique identifier for the policy.
	ID uuid.UUID `json:"id"`

	// Scope is the attachment kind: bucket or user.
	Scope PolicyScope `json:"scope"`

	// BucketName is set when Scope is bucket.
	BucketName string `json:"bucket_name,omitempty"`

	// Username is set when Scope is user. It is the principal owner whose
	// identity overrides any Principal element in the document.
	Username string `json:"username,omitempty"`

	// Document is the raw policy JSON.
	Document json.RawMessage `json:"document"`

	// CreatedAt is the timestamp when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the policy was last replaced.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBucketPolicy creates a policy document attached to a bucket.
func NewBucketPolicy(bucketName string, document []byte) *PolicyDocument {
	now := time.Now().UTC()
	return &PolicyDocument{
		ID:         uuid.New(),
		Scope:      PolicyScopeBucket,
		BucketName: bucketName,
		Document:   json.RawMessage(document),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewUserPolicy creates a policy document attached to a user.
func NewUserPolicy(username string, document []byte) *PolicyDocument {
	now := time.Now().UTC()
	return &PolicyDocument{
		ID:        uuid.New(),
		Scope:     PolicyScopeUser,
		Username:  username,
		Document:  json.RawMessage(document),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
