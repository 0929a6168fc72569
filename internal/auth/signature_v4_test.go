package auth

import (
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Key derivation vector from the AWS signature v4 documentation.
func TestGetSigningKey_KnownVector(t *testing.T) {
	secret := "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"
	date := time.Date(2015, 8, 30, 0, 0, 0, 0, time.UTC)

	key := GetSigningKey(secret, date, "us-east-1", "iam")

	require.Equal(t,
		"c4afb1cc5771d871763a393e44b703571b55cc28424d1a5e86da6ed3c154a4b9",
		hex.EncodeToString(key))
}

// Final signature vector from the AWS signature v4 documentation.
func TestGetSignature_KnownVector(t *testing.T) {
	secret := "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"
	date := time.Date(2015, 8, 30, 0, 0, 0, 0, time.UTC)
	stringToSign := "AWS4-HMAC-SHA256\n" +
		"20150830T123600Z\n" +
		"20150830/us-east-1/iam/aws4_request\n" +
		"f536975d06c0309214f805bb90ccff089219ecd68b2577efef23edd43b7e1a59"

	key := GetSigningKey(secret, date, "us-east-1", "iam")
	signature := GetSignature(key, stringToSign)

	require.Equal(t,
		"5d672d79c15b13162d9279b0855cfba6789a8edb4c82c400e06b5924a6f2b5d7",
		signature)
}

func TestValidateRequestTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		requestTime time.Time
		wantErr     error
	}{
		{
			name:        "exact match",
			requestTime: now,
		},
		{
			name:        "skew at the boundary in the past",
			requestTime: now.Add(-MaxSkewTime),
		},
		{
			name:        "skew at the boundary in the future",
			requestTime: now.Add(MaxSkewTime),
		},
		{
			name:        "one second past the boundary",
			requestTime: now.Add(-MaxSkewTime - time.Second),
			wantErr:     ErrRequestTimeTooSkewed,
		},
		{
			name:        "one second into the future past the boundary",
			requestTime: now.Add(MaxSkewTime + time.Second),
			wantErr:     ErrRequestTimeTooSkewed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequestTime(tt.requestTime, now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateExpiry(t *testing.T) {
	signedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expires int64
		now     time.Time
		wantErr error
	}{
		{
			name:    "well within the window",
			expires: 3600,
			now:     signedAt.Add(30 * time.Minute),
		},
		{
			name:    "exactly at expiration is still valid",
			expires: 3600,
			now:     signedAt.Add(time.Hour),
		},
		{
			name:    "one second past expiration",
			expires: 3600,
			now:     signedAt.Add(time.Hour + time.Second),
			wantErr: ErrRequestExpired,
		},
		{
			name:    "request signed in the future is accepted",
			expires: 60,
			now:     signedAt.Add(-time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExpiry(signedAt, tt.expires, tt.now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateScope(t *testing.T) {
	scope := CredentialScope{
		Date:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Region:  "us-east-1",
		Service: "s3",
	}

	require.NoError(t, ValidateScope(scope, "us-east-1", "s3"))
	require.NoError(t, ValidateScope(scope, "", "s3"), "empty region disables the region check")
	require.ErrorIs(t, ValidateScope(scope, "eu-west-1", "s3"), ErrRegionMismatch)
	require.ErrorIs(t, ValidateScope(scope, "us-east-1", "sts"), ErrServiceMismatch)
}

// signTestRequest signs a request the way a client would, using the same
// primitives under test against a round-trip verification. The empty-body
// payload hash is declared unless the caller already set one.
func signTestRequest(t *testing.T, r *http.Request, secretKey string, scope CredentialScope, signedAt time.Time, signedHeaders []string) SignedValues {
	t.Helper()

	r.Header.Set(XAmzDateHeader, signedAt.Format(ISO8601BasicFormat))
	if r.Header.Get(XAmzContentSHA256Header) == "" {
		r.Header.Set(XAmzContentSHA256Header, EmptyStringSHA256)
	}

	cr := GetCanonicalRequest(r, signedHeaders, r.Header.Get(XAmzContentSHA256Header))
	sts := GetStringToSign(cr, scope, signedAt.Format(ISO8601BasicFormat))
	key := GetSigningKey(secretKey, scope.Date, scope.Region, scope.Service)

	return SignedValues{
		Credential:    CredentialHeader{AccessKey: "AKIATEST", Scope: scope},
		SignedHeaders: signedHeaders,
		Signature:     GetSignature(key, sts.String()),
	}
}

func TestVerifyHeaderRequest(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	scope := CredentialScope{Date: now, Region: "us-east-1", Service: "s3"}
	secret := "test-secret-key"

	newRequest := func(t *testing.T) *http.Request {
		r, err := http.NewRequest(http.MethodGet, "http://localhost:9000/my-bucket?prefix=a", nil)
		require.NoError(t, err)
		r.Host = "localhost:9000"
		return r
	}

	t.Run("valid signature verifies", func(t *testing.T) {
		r := newRequest(t)
		sv := signTestRequest(t, r, secret, scope, now, []string{"host", "x-amz-date"})

		requestTime, err := VerifyHeaderRequest(r, secret, sv, "us-east-1", "s3", now)
		require.NoError(t, err)
		require.True(t, requestTime.Equal(now))
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		r := newRequest(t)
		sv := signTestRequest(t, r, secret, scope, now, []string{"host", "x-amz-date"})

		_, err := VerifyHeaderRequest(r, "other-secret", sv, "us-east-1", "s3", now)
		require.ErrorIs(t, err, ErrSignatureDoesNotMatch)
	})

	t.Run("tampered query fails", func(t *testing.T) {
		r := newRequest(t)
		sv := signTestRequest(t, r, secret, scope, now, []string{"host", "x-amz-date"})

		r.URL.RawQuery = "prefix=b"
		_, err := VerifyHeaderRequest(r, secret, sv, "us-east-1", "s3", now)
		require.ErrorIs(t, err, ErrSignatureDoesNotMatch)
	})

	t.Run("skewed clock fails before signature check", func(t *testing.T) {
		r := newRequest(t)
		sv := signTestRequest(t, r, secret, scope, now, []string{"host", "x-amz-date"})

		_, err := VerifyHeaderRequest(r, secret, sv, "us-east-1", "s3", now.Add(MaxSkewTime+time.Minute))
		require.ErrorIs(t, err, ErrRequestTimeTooSkewed)
	})

	t.Run("missing content hash header", func(t *testing.T) {
		r := newRequest(t)
		sv := signTestRequest(t, r, secret, scope, now, []string{"host", "x-amz-date"})
		r.Header.Del(XAmzContentSHA256Header)

		_, err := VerifyHeaderRequest(r, secret, sv, "us-east-1", "s3", now)
		require.ErrorIs(t, err, ErrMissingSecurityHeader)
	})

	t.Run("altered content hash fails", func(t *testing.T) {
		// A request body swap shows up as a different declared hash, which
		// must break the signature.
		r := newRequest(t)
		sv := signTestRequest(t, r, secret, scope, now, []string{"host", "x-amz-date"})
		r.Header.Set(XAmzContentSHA256Header, UnsignedPayload)

		_, err := VerifyHeaderRequest(r, secret, sv, "us-east-1", "s3", now)
		require.ErrorIs(t, err, ErrSignatureDoesNotMatch)
	})

	t.Run("missing date header", func(t *testing.T) {
		r := newRequest(t)
		sv := signTestRequest(t, r, secret, scope, now, []string{"host", "x-amz-date"})
		r.Header.Del(XAmzDateHeader)

		_, err := VerifyHeaderRequest(r, secret, sv, "us-east-1", "s3", now)
		require.ErrorIs(t, err, ErrMissingSecurityHeader)
	})

	t.Run("region mismatch", func(t *testing.T) {
		r := newRequest(t)
		sv := signTestRequest(t, r, secret, scope, now, []string{"host", "x-amz-date"})

		_, err := VerifyHeaderRequest(r, secret, sv, "eu-west-1", "s3", now)
		require.ErrorIs(t, err, ErrRegionMismatch)
	})
}

func TestVerifyPresignedRequest(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	scope := CredentialScope{Date: now, Region: "us-east-1", Service: "s3"}
	secret := "test-secret-key"

	// Sign a presigned-style request: the date travels in the query, the
	// payload is UNSIGNED-PAYLOAD, and X-Amz-Signature is excluded from
	// the canonical query string.
	buildSigned := func(t *testing.T, signedAt time.Time) (*http.Request, SignedValues) {
		t.Helper()

		r, err := http.NewRequest(http.MethodGet, "http://localhost:9000/my-bucket/my-key", nil)
		require.NoError(t, err)
		r.Host = "localhost:9000"

		query := r.URL.Query()
		query.Set(XAmzAlgorithmHeader, SignV4Algorithm)
		query.Set(XAmzDateHeader, signedAt.Format(ISO8601BasicFormat))
		query.Set(XAmzExpiresHeader, "3600")
		r.URL.RawQuery = query.Encode()

		cr := GetPresignedCanonicalRequest(r, []string{"host"}, UnsignedPayload)
		sts := GetStringToSign(cr, scope, signedAt.Format(ISO8601BasicFormat))
		key := GetSigningKey(secret, scope.Date, scope.Region, scope.Service)
		signature := GetSignature(key, sts.String())

		query.Set(XAmzSignatureHeader, signature)
		r.URL.RawQuery = query.Encode()

		return r, SignedValues{
			Credential:    CredentialHeader{AccessKey: "AKIATEST", Scope: scope},
			SignedHeaders: []string{"host"},
			Signature:     signature,
		}
	}

	t.Run("valid presigned request verifies", func(t *testing.T) {
		r, sv := buildSigned(t, now)

		_, err := VerifyPresignedRequest(r, secret, sv, 3600, "us-east-1", "s3", now.Add(10*time.Minute))
		require.NoError(t, err)
	})

	t.Run("no skew check within expiry", func(t *testing.T) {
		// 30 minutes of skew would fail a header-signed request but a
		// presigned URL only has the expiry bound.
		r, sv := buildSigned(t, now)

		_, err := VerifyPresignedRequest(r, secret, sv, 3600, "us-east-1", "s3", now.Add(30*time.Minute))
		require.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		r, sv := buildSigned(t, now)

		_, err := VerifyPresignedRequest(r, secret, sv, 3600, "us-east-1", "s3", now.Add(2*time.Hour))
		require.ErrorIs(t, err, ErrRequestExpired)
	})

	t.Run("tampered path fails", func(t *testing.T) {
		r, sv := buildSigned(t, now)
		r.URL.Path = "/my-bucket/other-key"

		_, err := VerifyPresignedRequest(r, secret, sv, 3600, "us-east-1", "s3", now)
		require.ErrorIs(t, err, ErrSignatureDoesNotMatch)
	})

	t.Run("query content hash does not replace the payload sentinel", func(t *testing.T) {
		// X-Amz-Content-Sha256 in the query is signed as an ordinary query
		// parameter; the payload-hash field stays UNSIGNED-PAYLOAD.
		r, err := http.NewRequest(http.MethodGet, "http://localhost:9000/my-bucket/my-key", nil)
		require.NoError(t, err)
		r.Host = "localhost:9000"

		query := r.URL.Query()
		query.Set(XAmzAlgorithmHeader, SignV4Algorithm)
		query.Set(XAmzDateHeader, now.Format(ISO8601BasicFormat))
		query.Set(XAmzExpiresHeader, "3600")
		query.Set(XAmzContentSHA256Header, EmptyStringSHA256)
		r.URL.RawQuery = query.Encode()

		cr := GetPresignedCanonicalRequest(r, []string{"host"}, UnsignedPayload)
		sts := GetStringToSign(cr, scope, now.Format(ISO8601BasicFormat))
		key := GetSigningKey(secret, scope.Date, scope.Region, scope.Service)
		signature := GetSignature(key, sts.String())

		query.Set(XAmzSignatureHeader, signature)
		r.URL.RawQuery = query.Encode()

		sv := SignedValues{
			Credential:    CredentialHeader{AccessKey: "AKIATEST", Scope: scope},
			SignedHeaders: []string{"host"},
			Signature:     signature,
		}

		_, err = VerifyPresignedRequest(r, secret, sv, 3600, "us-east-1", "s3", now)
		require.NoError(t, err)
	})
}
