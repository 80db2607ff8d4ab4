package integration

import (
	"errors"
	"fmt"
)

// Kind classifies an integration failure independently of the vendor.
type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindAuthentication Kind = "authentication"
	KindUpstream       Kind = "upstream"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
)

// Error is the single error type adapters return. Vendor-specific error
// types are converted into it before crossing the adapter boundary.
type Error struct {
	Provider   string
	Kind       Kind
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Provider != "" {
		prefix = e.Provider + " " + prefix
	}
	msg := fmt.Sprintf("%s error", prefix)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind. When the target carries a
// code, the codes must match too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// NewError creates a new Error.
func NewError(provider string, kind Kind, message string) *Error {
	return &Error{
		Provider: provider,
		Kind:     kind,
		Message:  message,
	}
}

// WithCode sets a vendor or internal error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Sentinels matched by kind through errors.Is.
var (
	ErrNotConfigured  = &Error{Kind: KindConfiguration, Message: "provider not configured"}
	ErrAuthentication = &Error{Kind: KindAuthentication, Message: "authentication failed"}
	ErrUpstream       = &Error{Kind: KindUpstream, Message: "upstream request failed"}
	ErrValidation     = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrNotFound       = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict       = &Error{Kind: KindConflict, Message: "conflict"}
)

// NotConfigured returns a configuration error naming the missing fields.
func NotConfigured(provider string, missing ...string) *Error {
	msg := "provider not configured"
	if len(missing) > 0 {
		msg = fmt.Sprintf("missing credentials: %v", missing)
	}
	return NewError(provider, KindConfiguration, msg)
}

// Validation returns a validation error.
func Validation(provider, format string, args ...any) *Error {
	return NewError(provider, KindValidation, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of err, or KindUpstream for errors that did not
// originate from this package.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindUpstream
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}
