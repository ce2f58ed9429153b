package errs

import (
	"net/http"
)

func newHTTPError(status int, message string, override bool, code *string) *HTTPError {
	formattedCode := MakeUpperCaseWithUnderscores(http.StatusText(status))
	if code != nil {
		formattedCode = *code
	}
	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   status,
		Override: override,
	}
}

// NewBadRequestError creates a 400 error. code defaults to "BAD_REQUEST".
func NewBadRequestError(message string, override bool, code *string, errors []FieldError) *HTTPError {
	e := newHTTPError(http.StatusBadRequest, message, override, code)
	e.Errors = errors
	return e
}

// NewNotFoundError creates a 404 error. code defaults to "NOT_FOUND".
func NewNotFoundError(message string, override bool, code *string) *HTTPError {
	return newHTTPError(http.StatusNotFound, message, override, code)
}

// NewServiceUnavailableError creates a 503 error for a database that is
// down or out of connections.
func NewServiceUnavailableError(message string, code *string) *HTTPError {
	return newHTTPError(http.StatusServiceUnavailable, message, false, code)
}

// NewGatewayTimeoutError creates a 504 error for queries that ran out of
// time.
func NewGatewayTimeoutError(message string, code *string) *HTTPError {
	return newHTTPError(http.StatusGatewayTimeout, message, false, code)
}

// NewInternalServerError creates a 500 error carrying only the generic
// status text.
func NewInternalServerError() *HTTPError {
	return newHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false, nil)
}
