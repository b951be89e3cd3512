// Package errors defines the error kinds shared by the storefront layers and
// their mapping onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels identify the kind of a failure. Match them with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")
)

type kind struct {
	sentinel error
	code     string
	status   int
}

var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{ErrConflict, "CONFLICT", http.StatusConflict},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
	{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError},
}

// AppError is an error carrying a client-facing code and message. Err holds
// the kind sentinel and, when there is one, the underlying cause.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

func newError(sentinel error, message string, cause error) *AppError {
	k := lookup(sentinel)
	err := sentinel
	if cause != nil {
		err = errors.Join(sentinel, cause)
	}
	return &AppError{Code: k.code, Message: message, Status: k.status, Err: err}
}

func lookup(err error) kind {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k
		}
	}
	return kinds[len(kinds)-1]
}

// NotFound reports a missing resource, e.g. NotFound("product", "b-001").
func NotFound(resource, id string) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s %q not found", resource, id), nil)
}

func InvalidInput(message string) *AppError {
	return newError(ErrInvalidInput, message, nil)
}

func Conflict(message string) *AppError {
	return newError(ErrConflict, message, nil)
}

// Unavailable reports a dependency that cannot be reached.
func Unavailable(message string, cause error) *AppError {
	return newError(ErrServiceUnavail, message, cause)
}

// Internal hides cause behind a generic message.
func Internal(cause error) *AppError {
	return newError(ErrInternal, "an internal error occurred", cause)
}

// Wrap adds context to err, keeping it matchable.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps err onto a status code. Unrecognized errors are 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return lookup(err).status
}

// Code returns the client-facing code for err.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return lookup(err).code
}
