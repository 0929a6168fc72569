// Package auth provides AWS Signature Version 4 authentication for Emberstore.
package auth

import "errors"

// Authentication and signature errors. Every verification failure maps to
// exactly one of these sentinels; the HTTP layer converts them into
// S3-compatible XML error responses via NewAuthError.
var (
	// ErrMissingCredentials indicates the request carried neither an
	// Authorization header nor presigned query credentials.
	ErrMissingCredentials = errors.New("request is missing authentication credentials")

	// ErrMalformedAuthHeader indicates the Authorization header or
	// presigned query parameters could not be parsed.
	ErrMalformedAuthHeader = errors.New("malformed authorization header")

	// ErrMissingSecurityHeader indicates a required security header is missing.
	ErrMissingSecurityHeader = errors.New("missing required security header")

	// ErrUnknownTimestampFormat indicates the signed timestamp could not
	// be parsed as ISO 8601 basic format.
	ErrUnknownTimestampFormat = errors.New("timestamp is not in ISO 8601 basic format")

	// ErrRequestTimeTooSkewed indicates the request time is too far from server time.
	ErrRequestTimeTooSkewed = errors.New("the difference between the request time and the server time is too large")

	// ErrRequestExpired indicates a presigned URL is past its expiry.
	ErrRequestExpired = errors.New("request has expired")

	// ErrBadCredentialScope indicates the credential scope is not
	// date/region/service/aws4_request.
	ErrBadCredentialScope = errors.New("credential scope is malformed")

	// ErrRegionMismatch indicates the credential scope names a region
	// other than the one this server is configured for.
	ErrRegionMismatch = errors.New("credential scope region does not match")

	// ErrServiceMismatch indicates the credential scope names a service
	// other than the one this server is configured for.
	ErrServiceMismatch = errors.New("credential scope service does not match")

	// ErrUnknownAccessKey indicates the access key ID is not found or inactive.
	ErrUnknownAccessKey = errors.New("the access key ID you provided does not exist in our records")

	// ErrSignatureDoesNotMatch indicates the calculated signature doesn't match.
	ErrSignatureDoesNotMatch = errors.New("the request signature we calculated does not match the signature you provided")

	// ErrAccessDenied indicates the request is not authorized.
	ErrAccessDenied = errors.New("access denied")
)

// S3ErrorCode represents S3 error codes for proper API responses.
type S3ErrorCode string

const (
	// S3ErrorAccessDenied maps to HTTP 403
	S3ErrorAccessDenied S3ErrorCode = "AccessDenied"

	// S3ErrorSignatureDoesNotMatch maps to HTTP 403
	S3ErrorSignatureDoesNotMatch S3ErrorCode = "SignatureDoesNotMatch"

	// S3ErrorInvalidAccessKeyId maps to HTTP 403
	S3ErrorInvalidAccessKeyId S3ErrorCode = "InvalidAccessKeyId"

	// S3ErrorRequestTimeTooSkewed maps to HTTP 403
	S3ErrorRequestTimeTooSkewed S3ErrorCode = "RequestTimeTooSkewed"

	// S3ErrorMissingSecurityHeader maps to HTTP 400
	S3ErrorMissingSecurityHeader S3ErrorCode = "MissingSecurityHeader"

	// S3ErrorAuthorizationHeaderMalformed maps to HTTP 400
	S3ErrorAuthorizationHeaderMalformed S3ErrorCode = "AuthorizationHeaderMalformed"
)

// AuthError represents an authentication error with S3-compatible error code.
type AuthError struct {
	// Code is the S3 error code.
	Code S3ErrorCode

	// Message is the error message.
	Message string

	// HTTPStatus is the HTTP status code.
	HTTPStatus int

	// Resource is the affected resource (optional).
	Resource string

	// RequestID is the request ID (optional).
	RequestID string
}

func (e *AuthError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewAuthError creates a new AuthError from a standard error.
func NewAuthError(err error) *AuthError {
	switch {
	case errors.Is(err, ErrSignatureDoesNotMatch):
		return &AuthError{
			Code:       S3ErrorSignatureDoesNotMatch,
			Message:    err.Error(),
			HTTPStatus: 403,
		}

	case errors.Is(err, ErrUnknownAccessKey):
		return &AuthError{
			Code:       S3ErrorInvalidAccessKeyId,
			Message:    err.Error(),
			HTTPStatus: 403,
		}

	case errors.Is(err, ErrRequestTimeTooSkewed):
		return &AuthError{
			Code:       S3ErrorRequestTimeTooSkewed,
			Message:    err.Error(),
			HTTPStatus: 403,
		}

	case errors.Is(err, ErrRequestExpired):
		return &AuthError{
			Code:       S3ErrorAccessDenied,
			Message:    err.Error(),
			HTTPStatus: 403,
		}

	case errors.Is(err, ErrMissingSecurityHeader):
		return &AuthError{
			Code:       S3ErrorMissingSecurityHeader,
			Message:    err.Error(),
			HTTPStatus: 400,
		}

	case errors.Is(err, ErrMalformedAuthHeader),
		errors.Is(err, ErrBadCredentialScope),
		errors.Is(err, ErrRegionMismatch),
		errors.Is(err, ErrServiceMismatch):
		return &AuthError{
			Code:       S3ErrorAuthorizationHeaderMalformed,
			Message:    err.Error(),
			HTTPStatus: 400,
		}

	default:
		// ErrMissingCredentials, ErrUnknownTimestampFormat, ErrAccessDenied
		// and anything unexpected all collapse into AccessDenied.
		return &AuthError{
			Code:       S3ErrorAccessDenied,
			Message:    err.Error(),
			HTTPStatus: 403,
		}
	}
}
