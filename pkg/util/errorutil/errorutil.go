package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the client core and the HTTP surface.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeNetwork      = "NETWORK_ERROR"
	CodeUpstream     = "UPSTREAM_ERROR"
	CodeUnsupported  = "UNSUPPORTED"
	CodeInternal     = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewNetworkError wraps a transport failure. The backend was never reached
// or did not answer, so the operation may be retried.
func NewNetworkError(message string, err error) error {
	return &DomainError{
		Code:       CodeNetwork,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewUnsupported(message string) error {
	return NewDomainError(CodeUnsupported, message, http.StatusNotImplemented, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// FromStatus maps a backend HTTP status into a DomainError. An empty message
// falls back to the status text.
func FromStatus(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return NewDomainError(CodeValidation, message, status, nil)
	case status == http.StatusUnauthorized:
		return NewUnauthorized(message)
	case status == http.StatusForbidden:
		return NewForbidden(message)
	case status == http.StatusNotFound:
		return NewDomainError(CodeNotFound, message, status, nil)
	case status == http.StatusConflict:
		return NewConflict(message, nil)
	default:
		return NewDomainError(CodeUpstream, message, status, nil)
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &DomainError{
			Code:       CodeNetwork,
			Message:    "request cancelled",
			HTTPStatus: http.StatusGatewayTimeout,
			Err:        err,
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// CodeOf returns the DomainError code carried by err, or "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether the failure is transient from the client's
// point of view. Conflicts are included: a rejected duplicate is surfaced
// the same way as a transport failure.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeNetwork, CodeUpstream, CodeConflict:
		return true
	default:
		return false
	}
}

// UserMessage returns the message suitable for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	de := ToDomainError(err)
	if de.Code == CodeInternal && de.Err != nil {
		return de.Err.Error()
	}
	return de.Message
}
