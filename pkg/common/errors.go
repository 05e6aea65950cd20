package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNextCalledMultipleTimes is returned by a continuation that was already invoked
// once during the same middleware invocation. The downstream chain is not re-run.
var ErrNextCalledMultipleTimes = errors.New("next() called multiple times")

// HTTPError represents an HTTP error with a status code and message.
// It can be returned from any middleware to control the response the server
// shell produces when the chain fails. Errors of any other type become a
// 500 Internal Server Error.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message to be sent in the response body
	Err        error  // Optional underlying cause, logged but never sent to the client
}

// Error implements the error interface.
// It returns a string representation of the HTTP error in the format "status: message".
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
// An empty message is replaced by the standard status text.
func NewHTTPError(statusCode int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}
