// Package errors defines the API error type rendered into the response envelope.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error with a stable client-facing code and HTTP status.
// Internal is logged but never rendered.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Internal   error          `json:"-"`
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return e.Message + ": " + e.Internal.Error()
	default:
		return e.Message
	}
}

// Unwrap exposes Internal to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches any AppError with the same code, so copies made by WithInternal
// and WithDetails still satisfy errors.Is against the sentinel.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if e == nil || !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy carrying err as its cause.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithDetails returns a copy whose Details is a fresh map merged with details.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	if len(details) == 0 {
		return &cpy
	}
	cpy.Details = make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		cpy.Details[k] = v
	}
	for k, v := range details {
		cpy.Details[k] = v
	}
	return &cpy
}

func sentinel(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: status}
}

// Errors shared across handlers and middleware.
var (
	ErrUnauthorized       = sentinel("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound           = sentinel("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrBadRequest         = sentinel("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrRateLimit          = sentinel("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
	ErrInternalServer     = sentinel("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrGenerationFailed   = sentinel("RECOMMENDATIONS_GENERATION_FAILED", "Could not generate recommendations", http.StatusBadGateway)
	ErrServiceUnavailable = sentinel("SERVICE_UNAVAILABLE", "Service temporarily unavailable", http.StatusServiceUnavailable)
	ErrTimeout            = sentinel("TIMEOUT", "The request took too long", http.StatusGatewayTimeout)
)

// New builds an AppError.
func New(code, message string, statusCode int) *AppError {
	return sentinel(code, message, statusCode)
}

// NewBadRequest is a BAD_REQUEST error with a formatted message.
func NewBadRequest(format string, args ...any) *AppError {
	return sentinel(ErrBadRequest.Code, fmt.Sprintf(format, args...), ErrBadRequest.StatusCode)
}

// NewNotFound is a NOT_FOUND error with a formatted message.
func NewNotFound(format string, args ...any) *AppError {
	return sentinel(ErrNotFound.Code, fmt.Sprintf(format, args...), ErrNotFound.StatusCode)
}

// FromError finds the AppError in err's chain. A bare context deadline maps to
// ErrTimeout and anything else to ErrInternalServer, with err kept as Internal.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.WithInternal(err)
	}
	return ErrInternalServer.WithInternal(err)
}
