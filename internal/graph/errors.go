package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned for every non-2xx Graph response.
type APIError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph %s: status %d: %s: %s", e.Operation, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph %s: status %d", e.Operation, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from Graph, e.g. a message or
// folder deleted by the user.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// countsAsFailure decides which errors trip the circuit breaker: transport
// failures, throttling and 5xx. Client errors (404, 400, ...) do not.
func countsAsFailure(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}
