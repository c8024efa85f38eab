// Package apperr defines the gateway's error taxonomy with stable codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class. Codes are part of the API contract and
// never change between releases.
type Code string

const (
	CodeMissingCredential Code = "MISSING_CREDENTIAL"
	CodeInvalidCredential Code = "INVALID_CREDENTIAL"
	CodeCredentialExpired Code = "CREDENTIAL_EXPIRED"
	CodeNotFound          Code = "NOT_FOUND"
	CodePayloadTooLarge   Code = "PAYLOAD_TOO_LARGE"
	CodeTooManyFiles      Code = "TOO_MANY_FILES"
	CodeStorageFault      Code = "STORAGE_FAULT"
)

// Error carries a stable code, a human-readable message, and an optional
// wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports code equality so errors.Is(err, &Error{Code: c}) works across
// wrapping layers.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New creates an Error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping a cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from err, or "" if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps a code to its HTTP response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeMissingCredential, CodeInvalidCredential, CodeCredentialExpired:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeTooManyFiles:
		return http.StatusBadRequest
	case CodeStorageFault:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
