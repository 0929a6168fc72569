// Package auth provides AWS Signature Version 4 authentication for Emberstore.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// =============================================================================
// RFC 3986 Percent-Encoding
// =============================================================================

// uriEncode percent-encodes a string per RFC 3986 as required by the v4
// signing process. Unreserved characters (A-Z, a-z, 0-9, '-', '_', '.', '~')
// pass through; everything else becomes %XX with uppercase hex. A space is
// encoded as %20, never '+'. When encodeSlash is false, '/' passes through
// so path separators survive.
func uriEncode(s string, encodeSlash bool) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z',
			c >= 'a' && c <= 'z',
			c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		}
	}

	return b.String()
}

const upperhex = "0123456789ABCDEF"

// =============================================================================
// Canonical Request Components
// =============================================================================

// CanonicalURI returns the percent-encoded request path with '/' preserved.
// An empty path canonicalizes to "/".
func CanonicalURI(path string) string {
	if path == "" {
		return "/"
	}
	return uriEncode(path, false)
}

// CanonicalQueryString builds the sorted, encoded query string.
// Each key and value is RFC 3986 encoded, pairs are formed as key=value
// (a key without a value still gets the '='), and the encoded pairs are
// sorted lexicographically. When excludeSignature is set, X-Amz-Signature
// is dropped before encoding; presigned verification requires this since
// the signature cannot cover itself.
func CanonicalQueryString(query url.Values, excludeSignature bool) string {
	if len(query) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(query))
	for key, values := range query {
		if excludeSignature && key == XAmzSignatureHeader {
			continue
		}
		for _, value := range values {
			pairs = append(pairs, uriEncode(key, true)+"="+uriEncode(value, true))
		}
	}

	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// CanonicalHeaders builds the canonical headers block for the given signed
// header names. Names are lowercased, values trimmed with internal runs of
// whitespace collapsed to a single space, and each line is terminated with
// '\n'. The host header is taken from the request URL authority. A signed
// header absent from the request contributes an empty value, which makes the
// canonical request differ from the client's and the signature check fail;
// it is never an error here.
func CanonicalHeaders(r *http.Request, signedHeaders []string) string {
	var canonical strings.Builder

	for _, header := range signedHeaders {
		name := strings.ToLower(header)

		var value string
		if name == "host" {
			value = r.Host
		} else {
			value = r.Header.Get(header)
		}

		value = strings.Join(strings.Fields(value), " ")

		canonical.WriteString(name)
		canonical.WriteString(":")
		canonical.WriteString(value)
		canonical.WriteString("\n")
	}

	return canonical.String()
}

// GetCanonicalRequest assembles the canonical request for a header-signed
// request.
func GetCanonicalRequest(r *http.Request, signedHeaders []string, payloadHash string) CanonicalRequest {
	return buildCanonicalRequest(r, signedHeaders, payloadHash, false)
}

// GetPresignedCanonicalRequest assembles the canonical request for a
// presigned URL, excluding X-Amz-Signature from the query string.
func GetPresignedCanonicalRequest(r *http.Request, signedHeaders []string, payloadHash string) CanonicalRequest {
	return buildCanonicalRequest(r, signedHeaders, payloadHash, true)
}

func buildCanonicalRequest(r *http.Request, signedHeaders []string, payloadHash string, presigned bool) CanonicalRequest {
	lowered := make([]string, len(signedHeaders))
	for i, h := range signedHeaders {
		lowered[i] = strings.ToLower(h)
	}
	sort.Strings(lowered)

	return CanonicalRequest{
		Method:        r.Method,
		URI:           CanonicalURI(r.URL.Path),
		QueryString:   CanonicalQueryString(r.URL.Query(), presigned),
		Headers:       CanonicalHeaders(r, lowered),
		SignedHeaders: strings.Join(lowered, ";"),
		PayloadHash:   payloadHash,
	}
}

// =============================================================================
// String to Sign
// =============================================================================

// GetStringToSign builds the string to sign from a canonical request.
// signedAt is the request timestamp in ISO 8601 basic format.
func GetStringToSign(cr CanonicalRequest, scope CredentialScope, signedAt string) StringToSign {
	hash := sha256.Sum256([]byte(cr.String()))

	return StringToSign{
		Algorithm:            SignV4Algorithm,
		RequestDateTime:      signedAt,
		CredentialScope:      scope.String(),
		CanonicalRequestHash: hex.EncodeToString(hash[:]),
	}
}
