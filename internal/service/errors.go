// Package service provides business logic services for Emberstore.
package service

import "errors"

// Common service errors.
var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserInactive       = errors.New("user is inactive")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("invalid password: must be at least 8 characters")
	ErrInvalidUsername    = errors.New("invalid username: must be 3-255 characters")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidRole        = errors.New("unknown role")

	// Access key errors
	ErrAccessKeyNotFound    = errors.New("access key not found")
	ErrAccessKeyInactive    = errors.New("access key is inactive")
	ErrAccessKeyExpired     = errors.New("access key has expired")
	ErrMaxAccessKeysReached = errors.New("maximum number of access keys reached")

	// Bucket errors
	ErrBucketNotFound      = errors.New("bucket not found")
	ErrBucketAlreadyExists = errors.New("bucket already exists")

	// Policy errors
	ErrPolicyNotFound = errors.New("policy not found")
	ErrInvalidPolicy  = errors.New("policy document contains no valid statement")
	ErrPolicyLockBusy = errors.New("policy is being modified by another request")

	// General errors
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInternalError    = errors.New("internal server error")
)
