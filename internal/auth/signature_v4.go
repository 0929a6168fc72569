// Package auth provides AWS Signature Version 4 authentication for Emberstore.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/emberstore/emberstore/internal/pkg/crypto"
)

// =============================================================================
// Signing Key Generation
// =============================================================================

// GetSigningKey derives the signing key for AWS v4 signatures.
// This implements the key derivation: HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), service), "aws4_request")
func GetSigningKey(secretKey string, date time.Time, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(date.Format(YYYYMMDD)))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	kSigning := hmacSHA256(kService, []byte(AWS4Request))

	crypto.Zero(kDate)
	crypto.Zero(kRegion)
	crypto.Zero(kService)

	return kSigning
}

// GetSignature calculates the hex-encoded signature using the signing key.
func GetSignature(signingKey []byte, stringToSign string) string {
	return hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))
}

// hmacSHA256 computes HMAC-SHA256.
func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// =============================================================================
// Scope and Time Validation
// =============================================================================

// ValidateScope checks the credential scope region and service against the
// server's expectations. The region check is skipped when expectedRegion
// is empty; the service must always match.
func ValidateScope(scope CredentialScope, expectedRegion, expectedService string) error {
	if expectedRegion != "" && scope.Region != expectedRegion {
		return ErrRegionMismatch
	}
	if scope.Service != expectedService {
		return ErrServiceMismatch
	}
	return nil
}

// ValidateRequestTime checks if the signed request time is within the
// accepted skew window of now, in either direction. A skew of exactly
// MaxSkewTime is accepted.
func ValidateRequestTime(requestTime, now time.Time) error {
	skew := now.Sub(requestTime)
	if skew < 0 {
		skew = -skew
	}

	if skew > MaxSkewTime {
		return ErrRequestTimeTooSkewed
	}

	return nil
}

// ValidateExpiry checks the presigned URL expiry window. The URL is valid
// through the instant requestTime + expires inclusive. There is no skew
// check for presigned requests; the expiry bound replaces it.
func ValidateExpiry(requestTime time.Time, expires int64, now time.Time) error {
	expiration := requestTime.Add(time.Duration(expires) * time.Second)
	if now.After(expiration) {
		return ErrRequestExpired
	}
	return nil
}

// =============================================================================
// Signature Verification
// =============================================================================

// VerifyHeaderRequest verifies a header-signed request against the secret
// key, at the given instant. The caller has already parsed signedValues
// from the Authorization header and resolved the secret for the claimed
// access key. Checks run in order: security header presence, timestamp
// presence and format, clock skew, credential scope, then the signature
// itself. X-Amz-Content-Sha256 is mandatory so that the body declaration
// is always bound to the signature.
func VerifyHeaderRequest(r *http.Request, secretKey string, signedValues SignedValues, expectedRegion, expectedService string, now time.Time) (time.Time, error) {
	payloadHash := r.Header.Get(XAmzContentSHA256Header)
	if payloadHash == "" {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMissingSecurityHeader, XAmzContentSHA256Header)
	}

	requestTime, err := GetRequestTime(r)
	if err != nil {
		return time.Time{}, err
	}

	if err := ValidateRequestTime(requestTime, now); err != nil {
		return requestTime, err
	}

	if err := ValidateScope(signedValues.Credential.Scope, expectedRegion, expectedService); err != nil {
		return requestTime, err
	}

	cr := GetCanonicalRequest(r, signedValues.SignedHeaders, payloadHash)
	if err := verifySignature(cr, secretKey, signedValues, requestTime); err != nil {
		return requestTime, err
	}

	return requestTime, nil
}

// VerifyPresignedRequest verifies a presigned URL request at the given
// instant. expires is the parsed X-Amz-Expires value in seconds. The skew
// window does not apply; instead the request must not be past
// requestTime + expires.
func VerifyPresignedRequest(r *http.Request, secretKey string, signedValues SignedValues, expires int64, expectedRegion, expectedService string, now time.Time) (time.Time, error) {
	requestTime, err := GetRequestTime(r)
	if err != nil {
		return time.Time{}, err
	}

	if err := ValidateExpiry(requestTime, expires, now); err != nil {
		return requestTime, err
	}

	if err := ValidateScope(signedValues.Credential.Scope, expectedRegion, expectedService); err != nil {
		return requestTime, err
	}

	// Presigned URLs are always signed over the unsigned-payload sentinel.
	cr := GetPresignedCanonicalRequest(r, signedValues.SignedHeaders, UnsignedPayload)
	if err := verifySignature(cr, secretKey, signedValues, requestTime); err != nil {
		return requestTime, err
	}

	return requestTime, nil
}

// verifySignature recomputes the signature over the canonical request and
// compares it to the claimed one in constant time. The derived signing key
// is wiped before returning.
func verifySignature(cr CanonicalRequest, secretKey string, signedValues SignedValues, requestTime time.Time) error {
	scope := signedValues.Credential.Scope

	stringToSign := GetStringToSign(cr, scope, requestTime.Format(ISO8601BasicFormat))

	signingKey := GetSigningKey(secretKey, scope.Date, scope.Region, scope.Service)
	expected := GetSignature(signingKey, stringToSign.String())
	crypto.Zero(signingKey)

	if !hmac.Equal([]byte(expected), []byte(signedValues.Signature)) {
		return ErrSignatureDoesNotMatch
	}

	return nil
}
