// Package apperr defines the error taxonomy shared by every handler.
//
// Errors fall into four kinds, each mapped to a fixed HTTP status:
//   - Validation (400): malformed or missing required event fields
//   - Authorization (403): tenant mismatch, bad signature, bad secret
//   - Upstream (500): a ticketing/chat/secrets call failed or returned an
//     unexpected shape
//   - Unsupported (400): an event shape the router does not recognize
//
// An Error also carries a Logged flag. Call sites that log an upstream
// failure with full context mark the error before returning it, so the
// boundary that converts it into an HTTP response does not log it again.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error into one of the taxonomy buckets.
type Kind int

const (
	KindValidation Kind = iota
	KindAuthorization
	KindUpstream
	KindUnsupported
)

// Error is the structured error type returned by handlers and clients.
type Error struct {
	Kind    Kind
	Message string // user-facing message placed in the response body
	Err     error  // wrapped cause, nil for pure input errors
	Logged  bool   // set when the originating site already logged the error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MarkLogged flags the error as already logged and returns it, so call
// sites can log with context and return in one expression.
func (e *Error) MarkLogged() *Error {
	e.Logged = true
	return e
}

// Validation creates a 400-class input error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Authorization creates a 403-class error.
func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// Upstream creates a 500-class error wrapping the upstream cause.
func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// Unsupported creates a 400-class error for unrecognized event shapes.
func Unsupported(message string) *Error {
	return &Error{Kind: KindUnsupported, Message: message}
}

// HTTPStatus maps an error to its response status code. Errors outside the
// taxonomy are treated as upstream failures.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation, KindUnsupported:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the message safe to place in a response body.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// IsLogged reports whether the error was already logged at its origin.
func IsLogged(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Logged
}
