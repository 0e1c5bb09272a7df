package osm

import (
	"errors"
	"fmt"
)

// ErrorCode defines standard error codes for pipeline failures
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// Service errors
	ErrTransport ErrorCode = "TRANSPORT_ERROR"

	// Data errors
	ErrSchema       ErrorCode = "SCHEMA_ERROR"
	ErrParse        ErrorCode = "PARSE_ERROR"
	ErrCacheCorrupt ErrorCode = "CACHE_CORRUPT"
)

// Error is the detailed error type carried across pipeline stages
type Error struct {
	Code    ErrorCode
	Message string
	Query   string
	Path    string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches the underlying cause
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// WithQuery adds the offending query string to the error
func (e *Error) WithQuery(query string) *Error {
	e.Query = query
	return e
}

// WithPath adds the offending file path to the error
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// IsCode reports whether err carries the given error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ServiceError creates a TRANSPORT_ERROR for an external service
// failure, always carrying the offending status. Callers see it
// unmasked, with no retry behind it.
func ServiceError(service string, statusCode int, message string) *Error {
	return NewError(ErrTransport,
		fmt.Sprintf("%s service error: %s (status %d)", service, message, statusCode))
}
