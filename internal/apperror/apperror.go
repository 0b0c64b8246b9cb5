package apperror

import (
	"errors"
	"fmt"
)

// Kind is a stable error category used by the HTTP layer to pick a status.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindOutOfRange   Kind = "out_of_range"
	KindConflict     Kind = "conflict"
	KindCapacity     Kind = "capacity"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
	KindStorage      Kind = "storage"
)

// AppError carries a kind, a user facing message and an optional cause.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
	Meta    map[string]any
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithMeta attaches a key/value pair that is returned to the client.
func (e *AppError) WithMeta(k string, v any) *AppError {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[k] = v
	return e
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, message string) *AppError {
	if err == nil {
		return New(kind, message)
	}
	return &AppError{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *AppError { return New(KindValidation, message) }
func OutOfRange(message string) *AppError { return New(KindOutOfRange, message) }
func Conflict(message string) *AppError   { return New(KindConflict, message) }
func Capacity(message string) *AppError   { return New(KindCapacity, message) }
func Forbidden(message string) *AppError  { return New(KindForbidden, message) }
func NotFound(message string) *AppError   { return New(KindNotFound, message) }

// Storage wraps a persistence failure. The cause is kept for logs only.
func Storage(err error, op string) *AppError {
	return Wrap(err, KindStorage, op)
}

// KindOf returns the kind of the first AppError in the chain, or "" if none.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
