// Package apierr defines the error kinds surfaced by the gateway. Every public
// operation returns at most one of them so callers can branch with errors.As.
package apierr

import (
	"errors"
	"fmt"
)

// CodeNoSuchOrder is the venue code for "unknown order sent"; cancel-all
// treats it as an empty result.
const CodeNoSuchOrder = -2011

// TransportError is a connection, DNS, TLS or timeout failure. The request may
// or may not have reached the venue.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means the body did not match the expected shape. Body keeps the
// raw payload for diagnostics.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v (body: %s)", e.Err, truncate(e.Body, 256))
}

func (e *DecodeError) Unwrap() error { return e.Err }

// VenueError is a well-formed rejection from the venue.
type VenueError struct {
	StatusCode int
	Code       int64
	Message    string
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("venue error (http %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// ValidationError is a local precondition failure detected before any network
// call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

// Invalid is a shorthand constructor for ValidationError.
func Invalid(field, reason string, args ...interface{}) *ValidationError {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &ValidationError{Field: field, Reason: reason}
}

// AsVenueError returns the VenueError in err's chain, if any.
func AsVenueError(err error) (*VenueError, bool) {
	var venueErr *VenueError
	if errors.As(err, &venueErr) {
		return venueErr, true
	}
	return nil, false
}

// IsVenueCode reports whether err carries the given venue error code.
func IsVenueCode(err error, code int64) bool {
	venueErr, ok := AsVenueError(err)
	return ok && venueErr.Code == code
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsDecode reports whether err is a DecodeError.
func IsDecode(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
