// Package apierr defines the error taxonomy shared by all HTTP surfaces.
// Services return typed errors; handlers translate them to JSON responses
// with the matching status code instead of leaking raw failures upstream.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies an error into one of the response categories.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstream            Kind = "upstream_error"
)

// Error is a typed service error carrying the classification, a
// client-safe message, and optional field-level detail.
type Error struct {
	Kind    Kind     `json:"error"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
	Hint    string   `json:"hint,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Validation reports missing or malformed input. fields lists every
// violation found, not just the first.
func Validation(message string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// NotFound reports an unresolvable identifier.
func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// Conflict reports a duplicate-resource violation.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// UpstreamUnavailable reports that a required collaborator is not
// configured or not reachable. hint tells the operator how to remediate.
func UpstreamUnavailable(message, hint string) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: message, Hint: hint}
}

// Upstream wraps a third-party failure. The cause is kept for logs but
// never serialized to the client.
func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, cause: cause}
}

// Status maps an error kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// Respond writes err as a JSON response on c. Untyped errors become a
// generic upstream error so stack details never reach the client.
func Respond(c echo.Context, err error) error {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = &Error{Kind: KindUpstream, Message: "internal error"}
	}
	return c.JSON(ae.Status(), ae)
}
