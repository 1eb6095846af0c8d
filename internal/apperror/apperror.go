// Package apperror defines the typed failures shared by the notification pipeline.
// Each error carries a machine-readable Kind plus a human message. Lookup and
// delivery errors append the wrapped cause's text to that message.
package apperror

import (
	"errors"
)

// Kind classifies a failure.
type Kind string

// Failure kinds.
const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindLookup     Kind = "lookup"
	KindDelivery   Kind = "delivery"
	KindInternal   Kind = "internal"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindLookup}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Validation returns a validation failure with the given message.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound returns a not-found failure with the given message.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Lookup wraps a directory store failure.
func Lookup(message string, err error) *Error {
	return &Error{Kind: KindLookup, Message: message, Err: err}
}

// Delivery wraps a push transport failure.
func Delivery(message string, err error) *Error {
	return &Error{Kind: KindDelivery, Message: message, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Error()
	}
	return "Internal server error"
}
