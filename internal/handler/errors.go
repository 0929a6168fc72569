// Package handler provides HTTP handlers for the Emberstore API.
package handler

import (
	"encoding/xml"
	"errors"
	"net/http"

	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/iam"
	"github.com/emberstore/emberstore/internal/service"
)

// S3Error is an S3-compatible error response.
type S3Error struct {
	XMLName        xml.Name `xml:"Error"`
	Code           string   `xml:"Code"`
	Message        string   `xml:"Message"`
	Resource       string   `xml:"Resource,omitempty"`
	RequestID      string   `xml:"RequestId,omitempty"`
	HTTPStatusCode int      `xml:"-"`
}

// writeError writes an S3-compatible XML error response.
func writeError(w http.ResponseWriter, s3err S3Error) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(s3err.HTTPStatusCode)

	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(s3err)
}

// writeServiceError maps known service errors to S3 error responses.
func writeServiceError(w http.ResponseWriter, err error, resource string) {
	s3err := mapServiceError(err)
	s3err.Resource = resource
	writeError(w, s3err)
}

func mapServiceError(err error) S3Error {
	switch {
	case errors.Is(err, iam.ErrAccessDenied):
		return S3Error{
			Code:           "AccessDenied",
			Message:        "Access Denied",
			HTTPStatusCode: http.StatusForbidden,
		}

	case errors.Is(err, service.ErrBucketNotFound):
		return S3Error{
			Code:           "NoSuchBucket",
			Message:        "The specified bucket does not exist.",
			HTTPStatusCode: http.StatusNotFound,
		}

	case errors.Is(err, service.ErrBucketAlreadyExists):
		return S3Error{
			Code:           "BucketAlreadyExists",
			Message:        "The requested bucket name is not available.",
			HTTPStatusCode: http.StatusConflict,
		}

	case errors.Is(err, domain.ErrBucketNameLength),
		errors.Is(err, domain.ErrBucketNameFormat),
		errors.Is(err, domain.ErrBucketNameIPFormat):
		return S3Error{
			Code:           "InvalidBucketName",
			Message:        "The specified bucket is not valid.",
			HTTPStatusCode: http.StatusBadRequest,
		}

	case errors.Is(err, service.ErrPolicyNotFound):
		return S3Error{
			Code:           "NoSuchBucketPolicy",
			Message:        "The bucket policy does not exist.",
			HTTPStatusCode: http.StatusNotFound,
		}

	case errors.Is(err, service.ErrInvalidPolicy):
		return S3Error{
			Code:           "MalformedPolicy",
			Message:        "Policies must be valid JSON and contain at least one valid statement.",
			HTTPStatusCode: http.StatusBadRequest,
		}

	case errors.Is(err, service.ErrPolicyLockBusy):
		return S3Error{
			Code:           "OperationAborted",
			Message:        "A conflicting conditional operation is currently in progress. Please try again.",
			HTTPStatusCode: http.StatusConflict,
		}

	default:
		return S3Error{
			Code:           "InternalError",
			Message:        "We encountered an internal error. Please try again.",
			HTTPStatusCode: http.StatusInternalServerError,
		}
	}
}

// methodNotAllowed is the shared response for unsupported methods.
func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, S3Error{
		Code:           "MethodNotAllowed",
		Message:        "The specified method is not allowed against this resource.",
		HTTPStatusCode: http.StatusMethodNotAllowed,
	})
}
