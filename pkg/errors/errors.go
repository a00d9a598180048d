// Package errors defines the sentinel errors shared across worddensity and an
// AppError type that carries a user-facing message and HTTP status.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidURL          = errors.New("invalid url")
	ErrFetchFailed         = errors.New("document fetch failed")
	ErrUnsupportedContent  = errors.New("unsupported content type")
	ErrDocumentTooLarge    = errors.New("document too large")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrTimeout             = errors.New("operation timed out")
	ErrReportNotFound      = errors.New("report not found")
	ErrInternal            = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is reports whether any error in err's chain matches target. It saves
// callers importing both this package and the standard errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// HTTPStatusCode maps err to the status code a handler should reply with.
// An AppError's own status wins over the sentinel mapping.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnsupportedContent):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message of err: the AppError message when
// present, the sentinel text for known sentinels, and a generic message
// otherwise.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.Error()
	}
	for _, sentinel := range []error{
		ErrInvalidInput, ErrInvalidURL, ErrFetchFailed, ErrUnsupportedContent,
		ErrDocumentTooLarge, ErrUpstreamUnavailable, ErrRateLimited, ErrTimeout,
		ErrReportNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ErrInternal.Error()
}
