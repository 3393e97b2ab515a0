package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors so callers and the HTTP layer can map them
// without string matching.
type Kind int

// Defining error kinds surfaced by the billing engines
const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindInvalidState
	KindValidation
	KindAuthorization
	KindPaymentRequired
	KindPaymentProcessing
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindInvalidState:
		return "InvalidState"
	case KindValidation:
		return "Validation"
	case KindAuthorization:
		return "Authorization"
	case KindPaymentRequired:
		return "PaymentRequired"
	case KindPaymentProcessing:
		return "PaymentProcessing"
	default:
		return "Unknown"
	}
}

// Error is the typed error returned by all engine operations. Engines return
// these unchanged to the caller; infrastructure failures are wrapped with
// pkg/errors instead.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound indicates a referenced entity is absent
func NotFound(resource, field, value string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found with %s: %s", resource, field, value),
	}
}

// Conflict indicates a uniqueness violation
func Conflict(message string) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: message,
	}
}

// InvalidState indicates the operation is not valid for the entity's current status
func InvalidState(message string) *Error {
	return &Error{
		Kind:    KindInvalidState,
		Message: message,
	}
}

// Validation indicates caller-supplied data fails a business rule
func Validation(message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
	}
}

// Authorization indicates the entity does not belong to the caller
func Authorization(message string) *Error {
	return &Error{
		Kind:    KindAuthorization,
		Message: message,
	}
}

// PaymentRequired indicates the payment gate for the operation is not satisfied
func PaymentRequired(message string) *Error {
	return &Error{
		Kind:    KindPaymentRequired,
		Message: message,
	}
}

// PaymentProcessing indicates the payment gateway itself failed
func PaymentProcessing(message string, err error) *Error {
	return &Error{
		Kind:    KindPaymentProcessing,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the Kind of err, or 0 if err is not an engine error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is an engine error of the given kind
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
