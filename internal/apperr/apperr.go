// Package apperr defines the error taxonomy surfaced at the HTTP boundary.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the client envelope and for log fields.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConfig     Kind = "config"
	KindUpstream   Kind = "upstream"
	KindUnknown    Kind = "unknown"
)

// GenericMessage is returned to clients in place of internal failure details.
const GenericMessage = "An unexpected error occurred. Please try again later."

// Error carries the HTTP status and client-facing message of a failure.
// Err holds the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Validation is bad or missing client input (400).
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: msg}
}

// InvalidPayload is a third-party response that failed schema checks (500).
func InvalidPayload(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// Config is missing server configuration (500).
func Config(msg string) *Error {
	return &Error{Kind: KindConfig, Status: http.StatusInternalServerError, Message: msg}
}

// Upstream is a third-party API failure (500).
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// Unknown is the catch-all (500).
func Unknown(err error) *Error {
	return &Error{Kind: KindUnknown, Status: http.StatusInternalServerError, Message: GenericMessage, Err: err}
}

// From returns err as an *Error, wrapping anything unclassified as Unknown.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unknown(err)
}

// IsKind reports whether err classifies as k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
