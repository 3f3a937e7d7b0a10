package forecast

import (
	"net/http"
)

// Code is a machine-readable forecast failure code.
type Code string

const (
	// CodeInsufficientData means the series has no usable observations.
	CodeInsufficientData Code = "INSUFFICIENT_DATA"
	// CodeInvalidInput means the series or horizon violates the input contract.
	CodeInvalidInput Code = "INVALID_INPUT"
)

// HTTPStatus maps a code to the status an HTTP boundary should return.
// Both codes are client errors.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInsufficientData, CodeInvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is matching by code.
var (
	ErrInsufficientData = &Error{Code: CodeInsufficientData}
	ErrInvalidInput     = &Error{Code: CodeInvalidInput}
)

// Error is the typed failure returned by Forecast and Baseline.
type Error struct {
	EntityID string `json:"entity_id"`
	Code     Code   `json:"code"`
	Message  string `json:"message"`
	Cause    error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.EntityID == "" {
		return string(e.Code) + ": " + e.Message
	}
	return e.EntityID + ": " + string(e.Code) + ": " + e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(entityID string, code Code, message string, cause error) *Error {
	return &Error{
		EntityID: entityID,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}
