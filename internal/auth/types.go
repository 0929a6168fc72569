// Package auth provides AWS Signature Version 4 authentication for Emberstore.
package auth

import (
	"time"
)

// =============================================================================
// Credential Types
// =============================================================================

// CredentialScope represents the scope of AWS credentials.
// Format: {date}/{region}/{service}/aws4_request
type CredentialScope struct {
	// Date is the date portion of the scope (YYYYMMDD).
	Date time.Time

	// Region is the region string (e.g., "us-east-1").
	Region string

	// Service is the service string (e.g., "s3").
	Service string
}

// String returns the credential scope as a string.
// Format: {date}/{region}/{service}/aws4_request
func (cs CredentialScope) String() string {
	return cs.Date.Format(YYYYMMDD) + "/" + cs.Region + "/" + cs.Service + "/" + AWS4Request
}

// CredentialHeader represents parsed credentials from the Authorization header
// or presigned query string.
type CredentialHeader struct {
	// AccessKey is the access key ID.
	AccessKey string

	// Scope is the credential scope.
	Scope CredentialScope
}

// String returns the credential as a string.
// Format: {access_key}/{scope}
func (ch CredentialHeader) String() string {
	return ch.AccessKey + "/" + ch.Scope.String()
}

// =============================================================================
// Signature Types
// =============================================================================

// SignedValues represents the components of an AWS v4 signature.
// These are parsed from the Authorization header or the query string.
type SignedValues struct {
	// Credential contains the access key and scope.
	Credential CredentialHeader

	// SignedHeaders is the list of headers included in the signature.
	SignedHeaders []string

	// Signature is the claimed signature (hex-encoded).
	Signature string
}

// AuthType represents the type of authentication used in a request.
type AuthType int

const (
	// AuthTypeUnknown indicates an unrecognized auth type.
	AuthTypeUnknown AuthType = iota

	// AuthTypeAnonymous indicates no authentication (public access).
	AuthTypeAnonymous

	// AuthTypeSignedV4 indicates AWS Signature Version 4 in the Authorization header.
	AuthTypeSignedV4

	// AuthTypePresignedV4 indicates AWS Signature Version 4 in query parameters.
	AuthTypePresignedV4
)

// String returns the string representation of the auth type.
func (at AuthType) String() string {
	switch at {
	case AuthTypeAnonymous:
		return "Anonymous"
	case AuthTypeSignedV4:
		return "SignedV4"
	case AuthTypePresignedV4:
		return "PresignedV4"
	default:
		return "Unknown"
	}
}

// =============================================================================
// Context Types
// =============================================================================

// AuthContext contains authentication information attached to a request.
// This is set by the auth middleware after successful authentication.
// Anonymous requests carry an AuthContext with AuthType AuthTypeAnonymous
// and no identity; the authorization layer decides whether they may proceed.
type AuthContext struct {
	// UserID is the authenticated user's ID. Zero for anonymous requests.
	UserID int64

	// Username is the authenticated user's name. Empty for anonymous requests.
	Username string

	// Roles are the roles held by the authenticated user.
	Roles []string

	// AccessKeyID is the access key used for authentication.
	AccessKeyID string

	// Credential contains the full credential information.
	Credential CredentialHeader

	// AuthType is the type of authentication used.
	AuthType AuthType

	// RequestTime is the time the request was signed.
	RequestTime time.Time

	// Region is the region from the credential scope.
	Region string
}

// IsAnonymous reports whether the request carried no credentials.
func (ac *AuthContext) IsAnonymous() bool {
	return ac.AuthType == AuthTypeAnonymous
}

// authContextKey is the context key for AuthContext.
type authContextKey struct{}

// AuthContextKey is the key used to store AuthContext in request context.
var AuthContextKey = authContextKey{}

// =============================================================================
// Signature Components
// =============================================================================

// CanonicalRequest represents the components of a canonical request.
// Used for debugging and testing signature calculation.
type CanonicalRequest struct {
	// Method is the HTTP method.
	Method string

	// URI is the canonical URI path.
	URI string

	// QueryString is the canonical query string.
	QueryString string

	// Headers is the canonical headers string.
	Headers string

	// SignedHeaders is the signed headers list.
	SignedHeaders string

	// PayloadHash is the hash of the request payload.
	PayloadHash string
}

// String returns the canonical request as a string for signing.
func (cr CanonicalRequest) String() string {
	return cr.Method + "\n" +
		cr.URI + "\n" +
		cr.QueryString + "\n" +
		cr.Headers + "\n" +
		cr.SignedHeaders + "\n" +
		cr.PayloadHash
}

// StringToSign represents the string to sign.
type StringToSign struct {
	// Algorithm is the signing algorithm.
	Algorithm string

	// RequestDateTime is the request timestamp.
	RequestDateTime string

	// CredentialScope is the credential scope string.
	CredentialScope string

	// CanonicalRequestHash is the hash of the canonical request.
	CanonicalRequestHash string
}

// String returns the string to sign.
func (sts StringToSign) String() string {
	return sts.Algorithm + "\n" +
		sts.RequestDateTime + "\n" +
		sts.CredentialScope + "\n" +
		sts.CanonicalRequestHash
}
