package handler

import (
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/emberstore/emberstore/internal/auth"
	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/iam"
	"github.com/emberstore/emberstore/internal/service"
)

// maxPolicyDocumentSize bounds the accepted policy body (matches the AWS
// bucket policy limit of 20 KiB).
const maxPolicyDocumentSize = 20 * 1024

// BucketHandler handles S3 bucket-level requests.
type BucketHandler struct {
	bucketService *service.BucketService
	policyService *service.PolicyService
	authorizer    *iam.Authorizer
	logger        zerolog.Logger
}

// BucketHandlerConfig contains configuration for the bucket handler.
type BucketHandlerConfig struct {
	BucketService *service.BucketService
	PolicyService *service.PolicyService
	Authorizer    *iam.Authorizer
	Logger        zerolog.Logger
}

// NewBucketHandler creates a new BucketHandler.
func NewBucketHandler(cfg BucketHandlerConfig) *BucketHandler {
	return &BucketHandler{
		bucketService: cfg.BucketService,
		policyService: cfg.PolicyService,
		authorizer:    cfg.Authorizer,
		logger:        cfg.Logger.With().Str("handler", "bucket").Logger(),
	}
}

// =============================================================================
// Response Types
// =============================================================================

// ListAllMyBucketsResult is the response for GET /.
type ListAllMyBucketsResult struct {
	XMLName xml.Name    `xml:"ListAllMyBucketsResult"`
	Owner   Owner       `xml:"Owner"`
	Buckets []BucketXML `xml:"Buckets>Bucket"`
}

// Owner identifies the bucket owner in list responses.
type Owner struct {
	DisplayName string `xml:"DisplayName"`
}

// BucketXML is one bucket entry in a list response.
type BucketXML struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

// =============================================================================
// Bucket Operations
// =============================================================================

// ListBuckets handles GET / (list all buckets visible to the caller).
func (h *BucketHandler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	id := requestIdentity(r)

	buckets, err := h.bucketService.ListBuckets(r.Context(), 0)
	if err != nil {
		writeServiceError(w, err, "/")
		return
	}

	// Filter to buckets the caller may list.
	visible := make([]BucketXML, 0, len(buckets))
	for _, bucket := range buckets {
		err := h.authorizer.RequireAll(r.Context(), id, iam.Rule{
			Action:   "s3:ListBucket",
			Resource: bucket.Resource(),
		})
		if err != nil {
			continue
		}
		visible = append(visible, BucketXML{
			Name:         bucket.Name,
			CreationDate: bucket.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeXML(w, http.StatusOK, ListAllMyBucketsResult{
		Owner:   Owner{DisplayName: id.Username},
		Buckets: visible,
	})
}

// CreateBucket handles PUT /{bucket}.
func (h *BucketHandler) CreateBucket(w http.ResponseWriter, r *http.Request, bucketName string) {
	authCtx := auth.GetAuthContext(r.Context())
	if authCtx == nil || authCtx.IsAnonymous() {
		writeError(w, S3Error{
			Code:           "AccessDenied",
			Message:        "Anonymous users cannot create buckets.",
			HTTPStatusCode: http.StatusForbidden,
			Resource:       "/" + bucketName,
		})
		return
	}

	err := h.authorizer.RequireAll(r.Context(), requestIdentity(r), iam.Rule{
		Action:   "s3:CreateBucket",
		Resource: domain.BucketResourcePrefix + bucketName,
	})
	if err != nil {
		writeServiceError(w, err, "/"+bucketName)
		return
	}

	bucket, err := h.bucketService.CreateBucket(r.Context(), service.CreateBucketInput{
		OwnerID: authCtx.UserID,
		Name:    bucketName,
	})
	if err != nil {
		writeServiceError(w, err, "/"+bucketName)
		return
	}

	w.Header().Set("Location", "/"+bucket.Name)
	w.WriteHeader(http.StatusOK)
}

// HeadBucket handles HEAD /{bucket}.
func (h *BucketHandler) HeadBucket(w http.ResponseWriter, r *http.Request, bucketName string) {
	err := h.authorizer.RequireAll(r.Context(), requestIdentity(r), iam.Rule{
		Action:   "s3:ListBucket",
		Resource: domain.BucketResourcePrefix + bucketName,
	})
	if err != nil {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	bucket, err := h.bucketService.GetBucket(r.Context(), bucketName)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("X-Amz-Bucket-Region", bucket.Region)
	w.WriteHeader(http.StatusOK)
}

// DeleteBucket handles DELETE /{bucket}.
func (h *BucketHandler) DeleteBucket(w http.ResponseWriter, r *http.Request, bucketName string) {
	err := h.authorizer.RequireAll(r.Context(), requestIdentity(r), iam.Rule{
		Action:   "s3:DeleteBucket",
		Resource: domain.BucketResourcePrefix + bucketName,
	})
	if err != nil {
		writeServiceError(w, err, "/"+bucketName)
		return
	}

	if err := h.bucketService.DeleteBucket(r.Context(), bucketName); err != nil {
		writeServiceError(w, err, "/"+bucketName)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Policy Subresource
// =============================================================================

// GetBucketPolicy handles GET /{bucket}?policy.
func (h *BucketHandler) GetBucketPolicy(w http.ResponseWriter, r *http.Request, bucketName string) {
	err := h.authorizer.RequireAll(r.Context(), requestIdentity(r), iam.Rule{
		Action:   "s3:GetBucketPolicy",
		Resource: domain.BucketResourcePrefix + bucketName,
	})
	if err != nil {
		writeServiceError(w, err, "/"+bucketName)
		return
	}

	policy, err := h.policyService.GetBucketPolicy(r.Context(), bucketName)
	if err != nil {
		writeServiceError(w, err, "/"+bucketName)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(policy.Document)
}

// PutBucketPolicy handles PUT /{bucket}?policy.
func (h *BucketHandler) PutBucketPolicy(w http.ResponseWriter, r *http.Request, bucketName string) {
	err := h.authorizer.RequireAll(r.Context(), requestIdentity(r), iam.Rule{
		Action:   "s3:PutBucketPolicy",
		Resource: domain.BucketResourcePrefix + bucketName,
	})
	if err != nil {
		writeServiceError(w, err, "/"+bucketName)
		return
	}

	document, err := io.ReadAll(io.LimitReader(r.Body, maxPolicyDocumentSize+1))
	if err != nil {
		writeError(w, S3Error{
			Code:           "InternalError",
			Message:        "Failed to read request body.",
			HTTPStatusCode: http.StatusInternalServerError,
			Resource:       "/" + bucketName,
		})
		return
	}
	if len(document) > maxPolicyDocumentSize {
		writeError(w, S3Error{
			Code:           "PolicyTooLarge",
			Message:        "The policy document exceeds the maximum allowed size.",
			HTTPStatusCode: http.StatusBadRequest,
			Resource:       "/" + bucketName,
		})
		return
	}

	if _, err := h.policyService.PutBucketPolicy(r.Context(), bucketName, document); err != nil {
		writeServiceError(w, err, "/"+bucketName)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteBucketPolicy handles DELETE /{bucket}?policy.
func (h *BucketHandler) DeleteBucketPolicy(w http.ResponseWriter, r *http.Request, bucketName string) {
	err := h.authorizer.RequireAll(r.Context(), requestIdentity(r), iam.Rule{
		Action:   "s3:DeleteBucketPolicy",
		Resource: domain.BucketResourcePrefix + bucketName,
	})
	if err != nil {
		writeServiceError(w, err, "/"+bucketName)
		return
	}

	if err := h.policyService.DeleteBucketPolicy(r.Context(), bucketName); err != nil {
		writeServiceError(w, err, "/"+bucketName)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeXML writes an XML response body.
func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(v)
}
