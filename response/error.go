package response

import (
	"fmt"

	"github.com/miragespace/subpay/apperror"
)

type Error struct {
	StatusCode int
	Message    string
	Messages   []string
	Result     interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

func (e *Error) AddMessages(msgs ...string) *Error {
	e.Messages = append(e.Messages, msgs...)
	return e
}

func (e *Error) WithResult(result interface{}) *Error {
	e.Result = result
	return e
}

func makeError(status int) *Error {
	return &Error{
		StatusCode: status,
		Messages:   make([]string, 0),
		Result:     []string{},
	}
}

// -----------------------------------------------

func ErrUnexpected() *Error {
	return makeError(500).
		WithMessage("An unexpected error has occured")
}

func ErrBadRequest() *Error {
	return makeError(400).
		WithMessage("Bad request")
}

func ErrUnauthorized() *Error {
	return makeError(401).
		WithMessage("Unauthorized")
}

func ErrPaymentRequired() *Error {
	return makeError(402).
		WithMessage("Payment required")
}

func ErrForbidden() *Error {
	return makeError(403).
		WithMessage("Forbidden")
}

func ErrNotFound() *Error {
	return makeError(404).
		WithMessage("Requested resources not found")
}

func ErrMethodNotAllowed() *Error {
	return makeError(405).
		WithMessage("Method not allowed")
}

func ErrConflict() *Error {
	return makeError(409).
		WithMessage("Conflict")
}

func ErrTooManyRequests() *Error {
	return makeError(429).
		WithMessage("Too many requests")
}

func ErrBadGateway() *Error {
	return makeError(502).
		WithMessage("Upstream payment processor error")
}

func ErrInvalidJson() *Error {
	return ErrBadRequest().AddMessages("Invalid JSON body")
}

func ErrNoBearer() *Error {
	return ErrUnauthorized().AddMessages("No valid Bearer token found in header")
}

// FromEngine maps a typed engine error to an HTTP error envelope. Callers
// receive the error kind and message only, never internal detail.
func FromEngine(err error) *Error {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return ErrNotFound().AddMessages(engineMessage(err))
	case apperror.KindConflict:
		return ErrConflict().AddMessages(engineMessage(err))
	case apperror.KindInvalidState, apperror.KindValidation:
		return ErrBadRequest().AddMessages(engineMessage(err))
	case apperror.KindAuthorization:
		return ErrForbidden().AddMessages(engineMessage(err))
	case apperror.KindPaymentRequired:
		return ErrPaymentRequired().AddMessages(engineMessage(err))
	case apperror.KindPaymentProcessing:
		return ErrBadGateway().AddMessages(engineMessage(err))
	default:
		return ErrUnexpected()
	}
}

func engineMessage(err error) string {
	if e, ok := err.(*apperror.Error); ok {
		return e.Message
	}
	return err.Error()
}
