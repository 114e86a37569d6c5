// Package apperrors defines the typed failures surfaced by the relation engine,
// the notification broker and the handlers built on top of them.
package apperrors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Kind classifies an Error.
type Kind string

const (
	KindNotFound             Kind = "NOT_FOUND"
	KindInvalidSelfReference Kind = "INVALID_SELF_REFERENCE"
	KindForbidden            Kind = "FORBIDDEN"
	KindPersistence          Kind = "PERSISTENCE_ERROR"
	KindConflict             Kind = "CONFLICT"
	KindBadRequest           Kind = "BAD_REQUEST"
	KindUnauthorized         Kind = "UNAUTHORIZED"
)

// Error is a typed application failure. Cause is kept for logging and errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// InvalidSelfReference creates an INVALID_SELF_REFERENCE error
func InvalidSelfReference(message string) *Error {
	return &Error{Kind: KindInvalidSelfReference, Message: message}
}

// Forbidden creates a FORBIDDEN error
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Conflict creates a CONFLICT error
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// Unauthorized creates an UNAUTHORIZED error
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Persistence wraps a storage failure. The cause keeps a stack trace.
func Persistence(cause error, message string) *Error {
	return &Error{Kind: KindPersistence, Message: message, Cause: errors.WithStack(cause)}
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a Kind to the status code returned to clients.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidSelfReference, KindBadRequest:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTPError converts err into an echo HTTP error. Persistence causes are not
// exposed to clients.
func ToHTTPError(err error) *echo.HTTPError {
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
	}
	message := appErr.Message
	if appErr.Kind == KindPersistence {
		message = "Internal server error"
	}
	return echo.NewHTTPError(HTTPStatus(appErr.Kind), message).SetInternal(err)
}
