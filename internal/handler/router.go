package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Router handles HTTP routing for the S3-compatible API and the admin API.
type Router struct {
	bucketHandler  *BucketHandler
	adminHandler   *AdminHandler
	authMiddleware func(http.Handler) http.Handler
	logger         zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	BucketHandler  *BucketHandler
	AdminHandler   *AdminHandler
	AuthMiddleware func(http.Handler) http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		bucketHandler:  config.BucketHandler,
		adminHandler:   config.AdminHandler,
		authMiddleware: config.AuthMiddleware,
		logger:         config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// Health check (no auth)
	r.Get("/health", rt.handleHealth)

	// Admin JSON API
	r.Route("/admin/v1", rt.adminHandler.RegisterRoutes)

	// Everything else is the S3 API. S3 paths embed bucket names directly,
	// so dispatch happens on the raw path rather than route patterns.
	r.HandleFunc("/*", rt.handleS3Request)
	r.HandleFunc("/", rt.handleS3Request)

	return rt.authMiddleware(r)
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// handleS3Request routes S3 API requests to appropriate handlers.
func (rt *Router) handleS3Request(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// Root path - list all buckets
	if path == "/" {
		if r.Method == http.MethodGet {
			rt.bucketHandler.ListBuckets(w, r)
			return
		}
		methodNotAllowed(w)
		return
	}

	// Path format: /{bucket} or /{bucket}/{key...}
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	bucketName := parts[0]

	if len(parts) > 1 && parts[1] != "" {
		// Object-level requests are outside the scope of this server.
		writeError(w, S3Error{
			Code:           "NotImplemented",
			Message:        "Object operations are not implemented.",
			HTTPStatusCode: http.StatusNotImplemented,
			Resource:       r.URL.Path,
		})
		return
	}

	rt.handleBucketRequest(w, r, bucketName)
}

// handleBucketRequest routes bucket-level requests.
func (rt *Router) handleBucketRequest(w http.ResponseWriter, r *http.Request, bucketName string) {
	query := r.URL.Query()

	// Policy sub-resource
	if _, ok := query["policy"]; ok {
		switch r.Method {
		case http.MethodGet:
			rt.bucketHandler.GetBucketPolicy(w, r, bucketName)
		case http.MethodPut:
			rt.bucketHandler.PutBucketPolicy(w, r, bucketName)
		case http.MethodDelete:
			rt.bucketHandler.DeleteBucketPolicy(w, r, bucketName)
		default:
			methodNotAllowed(w)
		}
		return
	}

	// Basic bucket operations
	switch r.Method {
	case http.MethodHead:
		rt.bucketHandler.HeadBucket(w, r, bucketName)
	case http.MethodPut:
		rt.bucketHandler.CreateBucket(w, r, bucketName)
	case http.MethodDelete:
		rt.bucketHandler.DeleteBucket(w, r, bucketName)
	default:
		methodNotAllowed(w)
	}
}
