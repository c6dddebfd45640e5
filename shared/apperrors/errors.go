package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Kind is the stable, machine-readable category of an error
type Kind string

const (
	KindAuthRequired      Kind = "AUTH_REQUIRED"
	KindAccessDenied      Kind = "ACCESS_DENIED"
	KindNotFound          Kind = "NOT_FOUND"
	KindConflict          Kind = "CONFLICT"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindValidationFailed  Kind = "VALIDATION_FAILED"
	KindRateLimited       Kind = "RATE_LIMITED"
	KindInternal          Kind = "INTERNAL"
)

// Sentinels usable with errors.Is
var (
	ErrAuthRequired      = &Error{Kind: KindAuthRequired}
	ErrAccessDenied      = &Error{Kind: KindAccessDenied}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrValidationFailed  = &Error{Kind: KindValidationFailed}
	ErrInternal          = &Error{Kind: KindInternal}
)

// Error is the error type returned by every lifecycle operation
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus maps the error kind to its response status code
func (e *Error) HTTPStatus() int {
	return StatusFor(e.Kind)
}

// WithDetail attaches a key to the error payload
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// StatusFor returns the HTTP status used for a kind
func StatusFor(kind Kind) int {
	switch kind {
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindAccessDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidTransition, KindValidationFailed:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func AuthRequired(format string, args ...interface{}) *Error {
	return newError(KindAuthRequired, format, args...)
}

func AccessDenied(format string, args ...interface{}) *Error {
	return newError(KindAccessDenied, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

func ValidationFailed(format string, args ...interface{}) *Error {
	return newError(KindValidationFailed, format, args...)
}

func RateLimited(format string, args ...interface{}) *Error {
	return newError(KindRateLimited, format, args...)
}

// InvalidTransition reports a status-table violation along with both states
func InvalidTransition(entity string, current, requested fmt.Stringer) *Error {
	return newError(KindInvalidTransition, "cannot move %s from %s to %s", entity, current, requested).
		WithDetail("current_status", current.String()).
		WithDetail("requested_status", requested.String())
}

// Internal wraps an unexpected failure; the cause is kept for logs only
func Internal(cause error, format string, args ...interface{}) *Error {
	e := newError(KindInternal, format, args...)
	e.cause = cause
	return e
}

// From converts any error into the taxonomy
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound("resource not found")
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Conflict("resource already exists")
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return NotFound("referenced resource not found")
	}
	return Internal(err, "unexpected error")
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	return From(err).Kind
}
