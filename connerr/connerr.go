// Package connerr holds the connector host's error taxonomy. Errors are
// sentinel values wrapped with context via fmt.Errorf("...: %w", err), so
// callers use errors.Is/errors.As instead of matching strings.
package connerr

import "errors"

// Kind identifies a category from the error taxonomy in the design doc.
type Kind string

const (
	KindConfigInvalid        Kind = "ConfigInvalid"
	KindUnknownConnectorType Kind = "UnknownConnectorType"
	KindConnectorNotFound    Kind = "ConnectorNotFound"
	KindNotSupported         Kind = "NotSupported"
	KindValidationFailed     Kind = "ValidationFailed"
	KindCircuitOpen          Kind = "CircuitOpen"
	KindTooManyRequests      Kind = "TooManyRequests"
	KindBreakerTimeout       Kind = "BreakerTimeout"
	KindBackendError         Kind = "BackendError"
	KindTokenRequestFailed   Kind = "TokenRequestFailed"
	KindProtocolError        Kind = "ProtocolError"
)

// Error is a typed error carrying a Kind plus a human-readable message and
// an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, connerr.ErrCircuitOpen) style matching work by
// comparing Kind rather than identity, since each New call produces a
// distinct *Error value.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a sentinel of the given kind, usable directly with errors.Is.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind and message to an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Of reports whether err (or something it wraps) has the given Kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Sentinels for the common zero-argument cases, so callers can do
// `errors.Is(err, connerr.ErrConnectorNotFound)` without constructing one.
var (
	ErrConnectorNotFound = New(KindConnectorNotFound, "connector instance not found")
	ErrNotSupported      = New(KindNotSupported, "operation not supported by connector")
	ErrCircuitOpen       = New(KindCircuitOpen, "circuit breaker is open")
	ErrTooManyRequests   = New(KindTooManyRequests, "breaker concurrency limit reached")
	ErrBreakerTimeout    = New(KindBreakerTimeout, "call exceeded breaker timeout")
)
