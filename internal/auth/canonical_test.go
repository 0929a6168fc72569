package auth

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestURIEncode(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		encodeSlash bool
		want        string
	}{
		{
			name:  "unreserved characters pass through",
			input: "AZaz09-_.~",
			want:  "AZaz09-_.~",
		},
		{
			name:  "space becomes percent-20 not plus",
			input: "my photo.jpg",
			want:  "my%20photo.jpg",
		},
		{
			name:        "slash preserved when not encoding",
			input:       "/bucket/key with space",
			encodeSlash: false,
			want:        "/bucket/key%20with%20space",
		},
		{
			name:        "slash encoded in query context",
			input:       "a/b",
			encodeSlash: true,
			want:        "a%2Fb",
		},
		{
			name:  "uppercase hex digits",
			input: "a=b&c",
			want:  "a%3Db%26c",
		},
		{
			name:  "plus sign is encoded",
			input: "a+b",
			want:  "a%2Bb",
		},
		{
			name:  "utf-8 bytes encoded individually",
			input: "über",
			want:  "%C3%BCber",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := uriEncode(tt.input, tt.encodeSlash)
			require.Equal(t, tt.want, got)
			require.NotContains(t, got, "+")
		})
	}
}

func TestCanonicalURI(t *testing.T) {
	require.Equal(t, "/", CanonicalURI(""))
	require.Equal(t, "/", CanonicalURI("/"))
	require.Equal(t, "/bucket/my%20key", CanonicalURI("/bucket/my key"))
	require.Equal(t, "/a/b/c", CanonicalURI("/a/b/c"))
}

func TestCanonicalQueryString(t *testing.T) {
	tests := []struct {
		name             string
		query            url.Values
		excludeSignature bool
		want             string
	}{
		{
			name:  "empty query",
			query: url.Values{},
			want:  "",
		},
		{
			name:  "key without value keeps equals sign",
			query: url.Values{"policy": {""}},
			want:  "policy=",
		},
		{
			name: "pairs sorted by encoded form",
			query: url.Values{
				"prefix":    {"photos/"},
				"delimiter": {"/"},
				"max-keys":  {"100"},
			},
			want: "delimiter=%2F&max-keys=100&prefix=photos%2F",
		},
		{
			name: "repeated key keeps both values",
			query: url.Values{
				"tag": {"b", "a"},
			},
			want: "tag=a&tag=b",
		},
		{
			name: "signature excluded for presigned verification",
			query: url.Values{
				"X-Amz-Signature": {"deadbeef"},
				"X-Amz-Expires":   {"3600"},
			},
			excludeSignature: true,
			want:             "X-Amz-Expires=3600",
		},
		{
			name: "signature kept when not excluding",
			query: url.Values{
				"X-Amz-Signature": {"deadbeef"},
			},
			want: "X-Amz-Signature=deadbeef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalQueryString(tt.query, tt.excludeSignature)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalHeaders(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "http://example.com/bucket", nil)
	require.NoError(t, err)
	r.Host = "example.com"
	r.Header.Set("X-Amz-Date", "20260101T000000Z")
	r.Header.Set("Content-Type", "  text/plain   charset=utf-8 ")

	got := CanonicalHeaders(r, []string{"content-type", "host", "x-amz-date"})
	want := "content-type:text/plain charset=utf-8\n" +
		"host:example.com\n" +
		"x-amz-date:20260101T000000Z\n"
	require.Equal(t, want, got)
}

func TestCanonicalHeaders_AbsentSignedHeader(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	r.Host = "example.com"

	// A signed header missing from the request contributes an empty value.
	// The signature check downstream will fail, but building the canonical
	// form must not error.
	got := CanonicalHeaders(r, []string{"host", "x-amz-content-sha256"})
	require.Equal(t, "host:example.com\nx-amz-content-sha256:\n", got)
}

func TestGetCanonicalRequest(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "http://example.com/my-bucket/my key?prefix=a&max-keys=10", nil)
	require.NoError(t, err)
	r.Host = "example.com"
	r.Header.Set("X-Amz-Date", "20260101T000000Z")

	cr := GetCanonicalRequest(r, []string{"X-Amz-Date", "Host"}, EmptyStringSHA256)

	require.Equal(t, http.MethodGet, cr.Method)
	require.Equal(t, "/my-bucket/my%20key", cr.URI)
	require.Equal(t, "max-keys=10&prefix=a", cr.QueryString)
	// Signed headers are lowercased and sorted regardless of input order.
	require.Equal(t, "host;x-amz-date", cr.SignedHeaders)
	require.Equal(t, EmptyStringSHA256, cr.PayloadHash)

	lines := strings.Split(cr.String(), "\n")
	require.Equal(t, "GET", lines[0])
	require.Equal(t, EmptyStringSHA256, lines[len(lines)-1])
}

func TestGetPresignedCanonicalRequest_ExcludesSignature(t *testing.T) {
	rawURL := "http://example.com/b/k?X-Amz-Algorithm=AWS4-HMAC-SHA256&X-Amz-Signature=" + strings.Repeat("a", 64)
	r, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)

	cr := GetPresignedCanonicalRequest(r, []string{"host"}, UnsignedPayload)
	require.NotContains(t, cr.QueryString, "X-Amz-Signature")
	require.Contains(t, cr.QueryString, "X-Amz-Algorithm")
}

func TestGetStringToSign(t *testing.T) {
	cr := CanonicalRequest{
		Method:        "GET",
		URI:           "/",
		QueryString:   "",
		Headers:       "host:example.com\n",
		SignedHeaders: "host",
		PayloadHash:   EmptyStringSHA256,
	}
	scope := CredentialScope{
		Date:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Region:  "us-east-1",
		Service: "s3",
	}

	sts := GetStringToSign(cr, scope, "20260101T120000Z")

	require.Equal(t, SignV4Algorithm, sts.Algorithm)
	require.Equal(t, "20260101T120000Z", sts.RequestDateTime)
	require.Equal(t, "20260101/us-east-1/s3/aws4_request", sts.CredentialScope)
	require.Len(t, sts.CanonicalRequestHash, 64)

	lines := strings.Split(sts.String(), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, SignV4Algorithm, lines[0])
}
