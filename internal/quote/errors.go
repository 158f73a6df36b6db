package quote

import (
	"errors"
	"strings"
)

// Kind classifies lifecycle errors. The manager is the single point that
// decides which kinds are retryable.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindSlicing     Kind = "slicing"
	KindPricing     Kind = "pricing"
	KindPersistence Kind = "persistence"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
)

// ErrStale marks a calculation result that arrived after the configuration
// it was computed for was edited away. It is an internal no-op, never a
// user-facing failure.
var ErrStale = errors.New("calculation superseded by a newer configuration")

// Error is a user-facing lifecycle error: a kind plus human-readable
// messages. Internal causes are wrapped but never rendered to the UI.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	cause   error
}

func (e *Error) Error() string {
	if len(e.Details) > 0 {
		return e.Message + ": " + strings.Join(e.Details, "; ")
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether the caller may usefully retry after fixing
// inputs or waiting. Pricing failures are defects and are not retryable.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindValidation, KindSlicing, KindPersistence:
		return true
	default:
		return false
	}
}

func newValidationError(details []string) *Error {
	return &Error{Kind: KindValidation, Message: "configuration is not valid", Details: details}
}

func newSlicingError(cause error) *Error {
	return &Error{Kind: KindSlicing, Message: "model analysis failed", cause: cause}
}

func newPricingError(cause error) *Error {
	return &Error{Kind: KindPricing, Message: "unable to calculate quote", cause: cause}
}

func newPersistenceError(cause error) *Error {
	return &Error{Kind: KindPersistence, Message: "quote could not be saved", cause: cause}
}

// AsError extracts a lifecycle *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
