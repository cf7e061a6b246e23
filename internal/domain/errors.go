package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError represents a failure in the request lifecycle
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Retryable interface for errors that can be retried
type Retryable interface {
	IsRetryable() bool
}

const (
	ErrCodeTransport         = "TRANSPORT_ERROR"
	ErrCodeMalformedResponse = "MALFORMED_RESPONSE"
	ErrCodeServerReported    = "SERVER_REPORTED"
	ErrCodeIdentityBootstrap = "IDENTITY_BOOTSTRAP"
	ErrCodeInvalidInput      = "INVALID_INPUT"
)

var (
	ErrIdentityCookieNotFound = &DomainError{Code: ErrCodeIdentityBootstrap, Message: "Identity cookie not found."}
)

// NewTransportError wraps a connectivity-level failure returned by the transport.
func NewTransportError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeTransport,
		Message: "network request failed",
		Err:     err,
	}
}

func NewMalformedResponseError(statusCode int, body string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMalformedResponse,
		Message: fmt.Sprintf("Unexpected server response with status code %d and response body: %s", statusCode, body),
	}
}

func NewSchemaViolationError(statusCode int, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeMalformedResponse,
		Message: fmt.Sprintf("Unexpected server response with status code %d", statusCode),
		Err:     err,
	}
}

func NewInvalidInputError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidInput,
		Message: "invalid input",
		Err:     err,
	}
}

// ServerReportedError is raised when a well-formed response carries errors.
type ServerReportedError struct {
	Messages []ServerMessage
}

func (e *ServerReportedError) Error() string {
	var b strings.Builder
	b.WriteString("The server responded with the following errors:")
	for _, m := range e.Messages {
		b.WriteString("\n• ")
		b.WriteString(m.Message)
	}
	return b.String()
}

// Code lets callers treat a ServerReportedError like any other coded error.
func (e *ServerReportedError) Code() string {
	return ErrCodeServerReported
}

// IsErrorCode checks if an error carries a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	var serverErr *ServerReportedError
	if errors.As(err, &serverErr) {
		return code == ErrCodeServerReported
	}
	return false
}
