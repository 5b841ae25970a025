package dto

import (
	"context"
	"errors"
	"net/http"

	apperp "github.com/erp/gateway/internal/application/erp"
	"github.com/erp/gateway/internal/domain/erp"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeCanceled is used when the client went away before the answer
	ErrCodeCanceled = "ERR_CANCELED"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
)

// Tenant error codes
const (
	// ErrCodeTenantRequired is used when X-Tenant-ID is missing
	ErrCodeTenantRequired = "ERR_TENANT_REQUIRED"
	// ErrCodeTenantInvalid is used when X-Tenant-ID is not a UUID
	ErrCodeTenantInvalid = "ERR_TENANT_INVALID"
)

// ERP error codes, one per gateway error kind
const (
	ErrCodeERPNotConfigured = "ERR_ERP_NOT_CONFIGURED"
	ErrCodeERPUnavailable   = "ERR_ERP_UNAVAILABLE"
	ErrCodeERPTimeout       = "ERR_ERP_TIMEOUT"
	ErrCodeERPQuery         = "ERR_ERP_QUERY"
	ErrCodeERPMapping       = "ERR_ERP_MAPPING"
	ErrCodeRateLimited      = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,
	// nginx convention for a client that closed the request
	ErrCodeCanceled: 499,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeNotFound:     http.StatusNotFound,

	ErrCodeTenantRequired: http.StatusUnauthorized,
	ErrCodeTenantInvalid:  http.StatusBadRequest,

	ErrCodeERPNotConfigured: http.StatusNotFound,
	ErrCodeERPUnavailable:   http.StatusServiceUnavailable,
	ErrCodeERPTimeout:       http.StatusServiceUnavailable,
	ErrCodeERPQuery:         http.StatusInternalServerError,
	ErrCodeERPMapping:       http.StatusInternalServerError,
	ErrCodeRateLimited:      http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

var kindCodes = map[erp.ErrorKind]string{
	erp.KindConfiguration: ErrCodeERPNotConfigured,
	erp.KindConnection:    ErrCodeERPUnavailable,
	erp.KindTimeout:       ErrCodeERPTimeout,
	erp.KindQuery:         ErrCodeERPQuery,
	erp.KindRateLimit:     ErrCodeRateLimited,
	erp.KindMapping:       ErrCodeERPMapping,
}

// ErrorInfoFor classifies err into a code and a client-safe message.
// Wrapped driver errors are never exposed; only the gateway message is.
func ErrorInfoFor(err error) ErrorInfo {
	switch {
	case errors.Is(err, apperp.ErrInvalidInput):
		return ErrorInfo{Code: ErrCodeInvalidInput, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return ErrorInfo{Code: ErrCodeCanceled, Message: "request canceled"}
	}

	var gwErr *erp.Error
	if errors.As(err, &gwErr) {
		code, ok := kindCodes[gwErr.Kind]
		if !ok {
			code = ErrCodeInternal
		}
		return ErrorInfo{Code: code, Message: gwErr.Message, Keyword: gwErr.Keyword}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorInfo{Code: ErrCodeERPTimeout, Message: "request timed out"}
	}
	return ErrorInfo{Code: ErrCodeInternal, Message: "An unexpected error occurred"}
}
