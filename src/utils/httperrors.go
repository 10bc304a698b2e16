package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines a custom error structure that includes an HTTP status code and message
type HTTPError struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
}

// Implement the Error() method to satisfy the error interface
func (e *HTTPError) Error() string {
	return e.Message
}

// New creates a new HTTPError instance with a custom status code and message
func NewHTTPError(code int, message string) error {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

// BadRequest creates a 400 Bad Request error
func BadRequest(message string) error {
	return NewHTTPError(http.StatusBadRequest, message)
}

// NotFound creates a 404 Not Found error
func NotFound(message string) error {
	return NewHTTPError(http.StatusNotFound, message)
}

// ToHTTPError maps domain errors to the status code reported to API clients.
func ToHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, context.DeadlineExceeded):
		return &HTTPError{Code: http.StatusGatewayTimeout, Message: "Request timed out"}
	case errors.Is(err, ErrValidation):
		return &HTTPError{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, ErrNotFound):
		return &HTTPError{Code: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, ErrTransactionNotPending):
		return &HTTPError{Code: http.StatusConflict, Message: err.Error()}
	case errors.Is(err, ErrInsufficientHoldings), errors.Is(err, ErrPriceUnavailable), errors.Is(err, ErrEmptyAllocation):
		return &HTTPError{Code: http.StatusUnprocessableEntity, Message: err.Error()}
	case err != nil:
		return &HTTPError{Code: http.StatusInternalServerError, Message: err.Error()}
	default:
		return &HTTPError{Code: http.StatusInternalServerError, Message: "Unhandled error"}
	}
}

// WriteError is a helper function to send the error response as JSON
func WriteError(w http.ResponseWriter, err error) {
	httpErr := ToHTTPError(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpErr.Code)
	fmt.Fprintf(w, `{"error": %q}`, httpErr.Message)
}
