// Package auth provides AWS Signature Version 4 authentication for Emberstore.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// AccessKeyStore defines the interface for retrieving access keys.
type AccessKeyStore interface {
	// GetActiveAccessKey retrieves an active access key by its ID.
	// Returns the access key with the decrypted secret.
	GetActiveAccessKey(ctx context.Context, accessKeyID string) (*AccessKeyInfo, error)

	// UpdateLastUsed updates the last used timestamp for an access key.
	UpdateLastUsed(ctx context.Context, accessKeyID string) error
}

// AccessKeyInfo contains the information needed for signature verification.
type AccessKeyInfo struct {
	// AccessKeyID is the public identifier.
	AccessKeyID string

	// SecretKey is the decrypted secret key (plaintext).
	SecretKey string

	// UserID is the ID of the user who owns this key.
	UserID int64

	// Username is the username of the user who owns this key.
	Username string

	// Roles are the roles held by the owning user.
	Roles []string

	// ExpiresAt is the optional expiration time.
	ExpiresAt *time.Time
}

// MetricsSink receives authentication outcomes. Implemented by the metrics
// package; a nil sink disables reporting.
type MetricsSink interface {
	// AuthOutcome records one authentication attempt.
	// outcome is "ok" or the failing S3 error code.
	AuthOutcome(authType, outcome string)
}

// Config contains configuration for the auth middleware.
type Config struct {
	// Region is the expected region. Empty disables the region check.
	Region string

	// Service is the expected service (usually "s3").
	Service string

	// SkipPaths are paths that skip authentication.
	SkipPaths []string

	// Now supplies the current time. Defaults to time.Now().UTC;
	// tests inject a fixed clock here.
	Now func() time.Time

	// Metrics receives per-attempt outcomes (optional).
	Metrics MetricsSink
}

// DefaultConfig returns the default auth configuration.
func DefaultConfig() Config {
	return Config{
		Region:    DefaultRegion,
		Service:   ServiceS3,
		SkipPaths: []string{"/health", "/metrics"},
	}
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c Config) report(authType AuthType, err error) {
	if c.Metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(NewAuthError(err).Code)
	}
	c.Metrics.AuthOutcome(authType.String(), outcome)
}

// Middleware creates an authentication middleware. Every request is
// classified and, when credentials are present, verified; the resulting
// AuthContext is attached to the request context. Anonymous requests pass
// through with an anonymous AuthContext so the authorization layer can
// decide whether a policy grants them anything.
func Middleware(store AccessKeyStore, config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			authType := GetAuthType(r)

			var (
				authCtx *AuthContext
				err     error
			)

			switch authType {
			case AuthTypeAnonymous:
				authCtx = &AuthContext{AuthType: AuthTypeAnonymous}

			case AuthTypeSignedV4:
				authCtx, err = handleSignedV4(r, store, config)

			case AuthTypePresignedV4:
				authCtx, err = handlePresignedV4(r, store, config)

			default:
				err = ErrMissingCredentials
			}

			config.report(authType, err)

			if err != nil {
				log.Debug().
					Err(err).
					Str("auth_type", authType.String()).
					Str("path", r.URL.Path).
					Msg("authentication failed")
				WriteAuthError(w, err)
				return
			}

			r = r.WithContext(context.WithValue(r.Context(), AuthContextKey, authCtx))
			next.ServeHTTP(w, r)
		})
	}
}

// handleSignedV4 handles Authorization-header authentication.
func handleSignedV4(r *http.Request, store AccessKeyStore, config Config) (*AuthContext, error) {
	signedValues, err := ParseSignV4(r.Header.Get(AuthorizationHeader))
	if err != nil {
		return nil, err
	}

	keyInfo, err := lookupKey(r.Context(), store, signedValues.Credential.AccessKey, config.now())
	if err != nil {
		return nil, err
	}

	requestTime, err := VerifyHeaderRequest(r, keyInfo.SecretKey, *signedValues, config.Region, config.Service, config.now())
	if err != nil {
		return nil, err
	}

	// Update last used timestamp (async, don't block request)
	go func() {
		_ = store.UpdateLastUsed(context.Background(), keyInfo.AccessKeyID)
	}()

	return &AuthContext{
		UserID:      keyInfo.UserID,
		Username:    keyInfo.Username,
		Roles:       keyInfo.Roles,
		AccessKeyID: keyInfo.AccessKeyID,
		Credential:  signedValues.Credential,
		AuthType:    AuthTypeSignedV4,
		RequestTime: requestTime,
		Region:      signedValues.Credential.Scope.Region,
	}, nil
}

// handlePresignedV4 handles presigned URL authentication.
func handlePresignedV4(r *http.Request, store AccessKeyStore, config Config) (*AuthContext, error) {
	signedValues, expires, err := ParsePresignedV4(r)
	if err != nil {
		return nil, err
	}

	keyInfo, err := lookupKey(r.Context(), store, signedValues.Credential.AccessKey, config.now())
	if err != nil {
		return nil, err
	}

	requestTime, err := VerifyPresignedRequest(r, keyInfo.SecretKey, *signedValues, expires, config.Region, config.Service, config.now())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = store.UpdateLastUsed(context.Background(), keyInfo.AccessKeyID)
	}()

	return &AuthContext{
		UserID:      keyInfo.UserID,
		Username:    keyInfo.Username,
		Roles:       keyInfo.Roles,
		AccessKeyID: keyInfo.AccessKeyID,
		Credential:  signedValues.Credential,
		AuthType:    AuthTypePresignedV4,
		RequestTime: requestTime,
		Region:      signedValues.Credential.Scope.Region,
	}, nil
}

// lookupKey resolves the claimed access key. Unknown, inactive, and expired
// keys are indistinguishable to the caller.
func lookupKey(ctx context.Context, store AccessKeyStore, accessKeyID string, now time.Time) (*AccessKeyInfo, error) {
	keyInfo, err := store.GetActiveAccessKey(ctx, accessKeyID)
	if err != nil {
		return nil, ErrUnknownAccessKey
	}

	if keyInfo.ExpiresAt != nil && now.After(*keyInfo.ExpiresAt) {
		return nil, ErrUnknownAccessKey
	}

	return keyInfo, nil
}

// WriteAuthError writes an S3-compatible XML error response.
func WriteAuthError(w http.ResponseWriter, err error) {
	authErr := NewAuthError(err)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(authErr.HTTPStatus)

	xmlResponse := `<?xml version="1.0" encoding="UTF-8"?>
<Error>
    <Code>` + string(authErr.Code) + `</Code>
    <Message>` + authErr.Message + `</Message>
</Error>`

	_, _ = w.Write([]byte(xmlResponse))
}

// GetAuthContext retrieves the AuthContext from a request context.
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}

// RequireAuth is a helper to get auth context or return error.
func RequireAuth(ctx context.Context) (*AuthContext, error) {
	authCtx := GetAuthContext(ctx)
	if authCtx == nil {
		return nil, ErrAccessDenied
	}
	return authCtx, nil
}
