package application

import (
	"context"
	"errors"
	"net/http"

	"github.com/DanielPopoola/edge-collector/internal/domain"
)

// ErrorCategory represents the nature of a request failure for metrics and
// the relay surface.
type ErrorCategory string

const (
	CategoryTransient   ErrorCategory = "TRANSIENT"
	CategoryUpstream    ErrorCategory = "UPSTREAM"
	CategoryClientError ErrorCategory = "CLIENT_ERROR"
	CategoryInternal    ErrorCategory = "INTERNAL"
)

// CategorizeError determines the error category of a dispatch failure
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	switch {
	case domain.IsErrorCode(err, domain.ErrCodeTransport):
		return CategoryTransient
	case domain.IsErrorCode(err, domain.ErrCodeMalformedResponse),
		domain.IsErrorCode(err, domain.ErrCodeServerReported):
		return CategoryUpstream
	case domain.IsErrorCode(err, domain.ErrCodeInvalidInput):
		return CategoryClientError
	}

	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeInvalidInput, ErrCodeRateLimited:
			return CategoryClientError
		case ErrCodeTimeout:
			return CategoryTransient
		}
	}

	return CategoryInternal
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case domain.IsErrorCode(err, domain.ErrCodeInvalidInput):
		return http.StatusBadRequest
	case domain.IsErrorCode(err, domain.ErrCodeServerReported):
		return http.StatusUnprocessableEntity
	case domain.IsErrorCode(err, domain.ErrCodeTransport),
		domain.IsErrorCode(err, domain.ErrCodeMalformedResponse):
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// ToErrorCode clear error code for API responses
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	var serverErr *domain.ServerReportedError
	if errors.As(err, &serverErr) {
		return serverErr.Code()
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrCodeTimeout
	}

	return ErrCodeInternal
}
