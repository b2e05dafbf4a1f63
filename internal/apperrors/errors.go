package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the closed taxonomy surfaced by the authorization core. Everything
// a downstream boundary throws gets folded into one of these before it
// crosses a package boundary.
type Code string

const (
	Unauthenticated    Code = "UNAUTHENTICATED"
	PermissionDenied   Code = "PERMISSION_DENIED"
	FailedPrecondition Code = "FAILED_PRECONDITION"
	NotFound           Code = "NOT_FOUND"
	Internal           Code = "INTERNAL"
)

// Error carries a taxonomy code, a user-presentable message and the
// underlying cause. The cause is for server-side logs only; handlers must
// not echo it back to clients.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a typed error. err may be nil.
func E(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the taxonomy code from err, walking wrapped errors.
// Anything untyped is Internal.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return Internal
}

// MessageOf returns the user-presentable message, or a generic one for
// untyped errors so raw downstream text never leaks to clients.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "operation could not be completed"
}

// HTTPStatus maps a taxonomy code to its HTTP response status.
func HTTPStatus(code Code) int {
	switch code {
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case FailedPrecondition:
		return http.StatusPreconditionFailed
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
