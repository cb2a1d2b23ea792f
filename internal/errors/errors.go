package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Domain errors wrap exactly one of these so MapErrorToHTTP can classify them.
var (
	// ErrInvalidArgument is returned for malformed or missing input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthenticated is returned when no usable session is presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when a session is presented but rejected.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a unique resource already exists.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned for missing resources and resources owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrTooLarge is returned when an upload exceeds the configured size limit.
	ErrTooLarge = errors.New("payload too large")
	// ErrUpstream is returned when the key service, object storage or mail transport fails.
	ErrUpstream = errors.New("upstream service error")
)

var (
	// ErrTitleRequired is returned when a todo title is empty after trimming.
	ErrTitleRequired = fmt.Errorf("%w: title is required", ErrInvalidArgument)
	// ErrNoFieldsToUpdate is returned when a patch carries no fields.
	ErrNoFieldsToUpdate = fmt.Errorf("%w: no fields to update", ErrInvalidArgument)
	// ErrInvalidNotifyMinutes is returned for negative reminder offsets.
	ErrInvalidNotifyMinutes = fmt.Errorf("%w: notify_minutes must be a non-negative integer", ErrInvalidArgument)
	// ErrUploadParamsRequired is returned when an upload lacks a filename or content type.
	ErrUploadParamsRequired = fmt.Errorf("%w: filename and contentType are required", ErrInvalidArgument)
	// ErrTodoNotFound is returned when a todo does not exist for the caller.
	ErrTodoNotFound = fmt.Errorf("%w: todo not found", ErrNotFound)
	// ErrUserNotFound is returned when the session's user no longer exists.
	ErrUserNotFound = fmt.Errorf("%w: user not found", ErrNotFound)
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = fmt.Errorf("%w: email already registered", ErrConflict)
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
	// ErrTokenRevoked is returned for tokens that were logged out.
	ErrTokenRevoked = fmt.Errorf("%w: token revoked", ErrForbidden)
)

// Invalid builds an ErrInvalidArgument with a client-facing message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Upstream wraps a collaborator failure as ErrUpstream.
func Upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
// Server-side failures get a generic message so internal detail never reaches the client.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrTodoNotFound):
		return NewHTTPError(http.StatusNotFound, "todo not found", "TODO_NOT_FOUND")
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, "not found", "NOT_FOUND")
	case errors.Is(err, ErrInvalidArgument):
		return NewHTTPError(http.StatusBadRequest, clientMessage(err, ErrInvalidArgument), "INVALID_ARGUMENT")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, "invalid email or password", "INVALID_CREDENTIALS")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, "invalid or expired token", "FORBIDDEN")
	case errors.Is(err, ErrEmailTaken):
		return NewHTTPError(http.StatusConflict, "email already registered", "EMAIL_TAKEN")
	case errors.Is(err, ErrConflict):
		return NewHTTPError(http.StatusConflict, "conflict", "CONFLICT")
	case errors.Is(err, ErrTooLarge):
		return NewHTTPError(http.StatusRequestEntityTooLarge, "file too large", "PAYLOAD_TOO_LARGE")
	case errors.Is(err, ErrUpstream):
		return NewHTTPError(http.StatusInternalServerError, "upstream service unavailable", "UPSTREAM_ERROR")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// clientMessage strips everything up to and including the kind prefix from a wrapped validation error.
func clientMessage(err, kind error) string {
	msg := err.Error()
	prefix := kind.Error() + ": "
	if i := strings.LastIndex(msg, prefix); i >= 0 && len(msg) > i+len(prefix) {
		return msg[i+len(prefix):]
	}
	return msg
}
