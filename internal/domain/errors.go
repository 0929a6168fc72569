// Package domain contains the core business entities for Emberstore.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserInactive indicates the user account is disabled.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ===========================================
	// Access Key Errors
	// ===========================================

	// ErrAccessKeyNotFound indicates the requested access key does not exist.
	ErrAccessKeyNotFound = errors.New("access key not found")

	// ErrAccessKeyInactive indicates the access key is disabled.
	ErrAccessKeyInactive = errors.New("access key is inactive")

	// ErrAccessKeyExpired indicates the access key has expired.
	ErrAccessKeyExpired = errors.New("access key has expired")

	// ErrInvalidAccessKeyID indicates the access key ID format is invalid.
	ErrInvalidAccessKeyID = errors.New("invalid access key ID")

	// ErrInvalidSecretKey indicates the secret key format is invalid.
	ErrInvalidSecretKey = errors.New("invalid secret key")

	// ===========================================
	// Bucket Errors
	// ===========================================

	// ErrBucketNotFound indicates the requested bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrBucketAlreadyExists indicates a bucket with the same name exists.
	ErrBucketAlreadyExists = errors.New("bucket already exists")

	// ErrBucketNameLength indicates the bucket name length is invalid (3-63 chars).
	ErrBucketNameLength = errors.New("bucket name must be between 3 and 63 characters")

	// ErrBucketNameFormat indicates the bucket name format is invalid.
	ErrBucketNameFormat = errors.New("bucket name must contain only lowercase letters, numbers, hyphens, and periods")

	// ErrBucketNameIPFormat indicates the bucket name looks like an IP address.
	ErrBucketNameIPFormat = errors.New("bucket name cannot be formatted as an IP address")

	// ===========================================
	// Policy Errors
	// ===========================================

	// ErrPolicyNotFound indicates the requested policy does not exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrInvalidPolicy indicates the policy document contains no valid statement.
	ErrInvalidPolicy = errors.New("policy document contains no valid statement")

	// ===========================================
	// Authentication/Authorization Errors
	// ===========================================

	// ErrAccessDenied indicates the user does not have permission.
	ErrAccessDenied = errors.New("access denied")

	// ErrSignatureDoesNotMatch indicates the request signature is invalid.
	ErrSignatureDoesNotMatch = errors.New("signature does not match")

	// ErrRequestExpired indicates the request has expired.
	ErrRequestExpired = errors.New("request has expired")

	// ErrMissingSecurityHeader indicates a required security header is missing.
	ErrMissingSecurityHeader = errors.New("missing required security header")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., bucket name, policy ID).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// WrapError wraps an error with domain context if it's not already a DomainError.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	return &DomainError{
		Err:     err,
		Message: message,
	}
}
