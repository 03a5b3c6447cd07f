package fetch

import (
	"errors"
	"fmt"
)

// Common errors returned by the orchestrator API.
var (
	// ErrURLRequired is returned when Options.URL is empty.
	ErrURLRequired = errors.New("url is required")

	// ErrNegativeRetry is returned when Options.Retry is below zero.
	ErrNegativeRetry = errors.New("retry must be >= 0")

	// ErrNilStore is returned when Config.Store is nil.
	ErrNilStore = errors.New("cache store is required")

	// ErrNilTransport is returned when Config.Transport is nil.
	ErrNilTransport = errors.New("transport is required")

	// ErrClosed is returned when the orchestrator has been closed.
	ErrClosed = errors.New("orchestrator closed")

	// ErrNotStarted is returned by Refetch before Start.
	ErrNotStarted = errors.New("orchestrator not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("orchestrator already started")
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassHTTP represents non-2xx responses.
	ErrorClassHTTP ErrorClass = "http"

	// ErrorClassTransport represents network failures and aborts.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassParse represents malformed response or cache bodies.
	ErrorClassParse ErrorClass = "parse"
)

// HTTPError is a response with a non-2xx status.
type HTTPError struct {
	StatusCode int
	StatusText string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.StatusCode, e.StatusText)
}

// TransportError wraps a failure of the transport itself.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError wraps a body that could not be decoded.
type ParseError struct {
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ClassifyError returns the class of err, or "" for unrelated errors.
func ClassifyError(err error) ErrorClass {
	var httpErr *HTTPError
	var transportErr *TransportError
	var parseErr *ParseError

	switch {
	case errors.As(err, &httpErr):
		return ErrorClassHTTP
	case errors.As(err, &transportErr):
		return ErrorClassTransport
	case errors.As(err, &parseErr):
		return ErrorClassParse
	default:
		return ""
	}
}
