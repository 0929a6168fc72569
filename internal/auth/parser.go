// Package auth provides AWS Signature Version 4 authentication for Emberstore.
package auth

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Authorization Header Parsing
// =============================================================================

// GetAuthType determines the authentication type from a request.
// An Authorization header takes precedence over presigned query parameters.
func GetAuthType(r *http.Request) AuthType {
	authHeader := r.Header.Get(AuthorizationHeader)

	if authHeader != "" {
		if strings.HasPrefix(authHeader, SignV4Algorithm) {
			return AuthTypeSignedV4
		}
		return AuthTypeUnknown
	}

	query := r.URL.Query()
	if query.Get(XAmzAlgorithmHeader) == SignV4Algorithm {
		return AuthTypePresignedV4
	}
	if query.Get(XAmzCredentialHeader) != "" || query.Get(XAmzSignatureHeader) != "" {
		return AuthTypeUnknown
	}

	return AuthTypeAnonymous
}

// ExtractAccessKeyID returns the access key ID a request claims, without
// verifying anything else. The Authorization header credential wins; the
// query credential is consulted only when no v4 Authorization header is
// present. Returns an empty string for anonymous requests.
func ExtractAccessKeyID(r *http.Request) string {
	if authHeader := r.Header.Get(AuthorizationHeader); strings.HasPrefix(authHeader, SignV4Algorithm) {
		if sv, err := ParseSignV4(authHeader); err == nil {
			return sv.Credential.AccessKey
		}
		return ""
	}

	credential := r.URL.Query().Get(XAmzCredentialHeader)
	if credential == "" {
		return ""
	}
	if idx := strings.IndexByte(credential, '/'); idx > 0 {
		return credential[:idx]
	}
	return ""
}

// ParseSignV4 parses an AWS v4 Authorization header.
// Format: AWS4-HMAC-SHA256 Credential=access_key/date/region/service/aws4_request, SignedHeaders=..., Signature=...
func ParseSignV4(authHeader string) (*SignedValues, error) {
	if !strings.HasPrefix(authHeader, SignV4Algorithm) {
		return nil, ErrMalformedAuthHeader
	}

	rest := strings.TrimSpace(authHeader[len(SignV4Algorithm):])

	var credentialStr, signedHeadersStr, signatureStr string
	for _, field := range strings.Split(rest, ",") {
		field = strings.TrimSpace(field)
		switch {
		case strings.HasPrefix(field, "Credential="):
			credentialStr = strings.TrimPrefix(field, "Credential=")
		case strings.HasPrefix(field, "SignedHeaders="):
			signedHeadersStr = strings.TrimPrefix(field, "SignedHeaders=")
		case strings.HasPrefix(field, "Signature="):
			signatureStr = strings.TrimPrefix(field, "Signature=")
		}
	}

	if credentialStr == "" {
		return nil, fmt.Errorf("%w: missing credential", ErrMalformedAuthHeader)
	}
	if signedHeadersStr == "" {
		return nil, fmt.Errorf("%w: missing signed headers", ErrMalformedAuthHeader)
	}
	if !isHexSignature(signatureStr) {
		return nil, fmt.Errorf("%w: missing or invalid signature", ErrMalformedAuthHeader)
	}

	credential, err := parseCredential(credentialStr)
	if err != nil {
		return nil, err
	}

	signedHeaders := strings.Split(signedHeadersStr, ";")
	for i, h := range signedHeaders {
		signedHeaders[i] = strings.ToLower(h)
	}
	if !sort.StringsAreSorted(signedHeaders) {
		return nil, fmt.Errorf("%w: signed headers not sorted", ErrMalformedAuthHeader)
	}

	return &SignedValues{
		Credential:    *credential,
		SignedHeaders: signedHeaders,
		Signature:     signatureStr,
	}, nil
}

// parseCredential parses access_key/date/region/service/aws4_request.
func parseCredential(credential string) (*CredentialHeader, error) {
	parts := strings.Split(credential, "/")
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: expected 5 components, got %d", ErrBadCredentialScope, len(parts))
	}
	if parts[0] == "" {
		return nil, fmt.Errorf("%w: empty access key", ErrBadCredentialScope)
	}
	if parts[4] != AWS4Request {
		return nil, fmt.Errorf("%w: scope must end in %s", ErrBadCredentialScope, AWS4Request)
	}

	date, err := time.Parse(YYYYMMDD, parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrBadCredentialScope, parts[1])
	}

	return &CredentialHeader{
		AccessKey: parts[0],
		Scope: CredentialScope{
			Date:    date,
			Region:  parts[2],
			Service: parts[3],
		},
	}, nil
}

// isHexSignature reports whether s is a 64-char lowercase hex string.
func isHexSignature(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// =============================================================================
// Presigned URL Parsing
// =============================================================================

// ParsePresignedV4 parses presigned URL query parameters.
// Returns the signed values and the X-Amz-Expires value in seconds.
func ParsePresignedV4(r *http.Request) (*SignedValues, int64, error) {
	query := r.URL.Query()

	if query.Get(XAmzAlgorithmHeader) != SignV4Algorithm {
		return nil, 0, fmt.Errorf("%w: unsupported algorithm", ErrMalformedAuthHeader)
	}

	credentialStr := query.Get(XAmzCredentialHeader)
	if credentialStr == "" {
		return nil, 0, fmt.Errorf("%w: missing %s", ErrMalformedAuthHeader, XAmzCredentialHeader)
	}
	credential, err := parseCredential(credentialStr)
	if err != nil {
		return nil, 0, err
	}

	signedHeadersStr := query.Get(XAmzSignedHeadersHeader)
	if signedHeadersStr == "" {
		return nil, 0, fmt.Errorf("%w: missing %s", ErrMalformedAuthHeader, XAmzSignedHeadersHeader)
	}
	signedHeaders := strings.Split(signedHeadersStr, ";")
	for i, h := range signedHeaders {
		signedHeaders[i] = strings.ToLower(h)
	}

	signature := query.Get(XAmzSignatureHeader)
	if !isHexSignature(signature) {
		return nil, 0, fmt.Errorf("%w: missing or invalid signature", ErrMalformedAuthHeader)
	}

	expiresStr := query.Get(XAmzExpiresHeader)
	if expiresStr == "" {
		return nil, 0, fmt.Errorf("%w: missing %s", ErrMalformedAuthHeader, XAmzExpiresHeader)
	}
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil || expires < 0 {
		return nil, 0, fmt.Errorf("%w: invalid %s value", ErrMalformedAuthHeader, XAmzExpiresHeader)
	}

	return &SignedValues{
		Credential:    *credential,
		SignedHeaders: signedHeaders,
		Signature:     signature,
	}, expires, nil
}

// =============================================================================
// Request Time Extraction
// =============================================================================

// GetRequestTime extracts the signed request time from the X-Amz-Date header
// or, for presigned URLs, the X-Amz-Date query parameter. A value that is
// present but not in ISO 8601 basic format is ErrUnknownTimestampFormat;
// an absent value is ErrMissingSecurityHeader.
func GetRequestTime(r *http.Request) (time.Time, error) {
	dateStr := r.Header.Get(XAmzDateHeader)
	if dateStr == "" {
		dateStr = r.URL.Query().Get(XAmzDateHeader)
	}
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMissingSecurityHeader, XAmzDateHeader)
	}

	t, err := time.Parse(ISO8601BasicFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownTimestampFormat, dateStr)
	}
	return t, nil
}
