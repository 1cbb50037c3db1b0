package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies a failure of a lifecycle operation.
type Kind string

const (
	KindUnauthorized         Kind = "UNAUTHORIZED"
	KindForbidden            Kind = "FORBIDDEN"
	KindNotFound             Kind = "NOT_FOUND"
	KindUserNotFound         Kind = "USER_NOT_FOUND"
	KindAlreadyAssigned      Kind = "ALREADY_ASSIGNED"
	KindInvalidAssigneeRole  Kind = "INVALID_ASSIGNEE_ROLE"
	KindInvalidTransition    Kind = "INVALID_TRANSITION"
	KindInvalidDueDateFormat Kind = "INVALID_DUE_DATE_FORMAT"
	KindDueDateInPast        Kind = "DUE_DATE_IN_PAST"
	KindNoFieldsProvided     Kind = "NO_FIELDS_PROVIDED"
	KindNotDeleted           Kind = "NOT_DELETED"
	KindValidation           Kind = "VALIDATION_FAILED"
	KindStorageFailure       Kind = "STORAGE_FAILURE"
	KindInternal             Kind = "INTERNAL_ERROR"
)

// Status returns the HTTP status a failure of this kind is reported with.
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound, KindUserNotFound:
		return http.StatusNotFound
	case KindAlreadyAssigned, KindInvalidAssigneeRole, KindInvalidTransition,
		KindInvalidDueDateFormat, KindDueDateInPast, KindNoFieldsProvided, KindNotDeleted:
		return http.StatusBadRequest
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindStorageFailure, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// APIError is the structured failure every service operation returns.
type APIError struct {
	Kind    Kind              `json:"code"`
	Message string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`

	cause error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// Is matches any APIError of the same kind, so callers can compare against
// the predefined values with errors.Is.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Status returns the HTTP status code for this error.
func (e *APIError) Status() int {
	return e.Kind.Status()
}

// New creates a new APIError
func New(kind Kind, message string) *APIError {
	return &APIError{Kind: kind, Message: message}
}

// Wrap creates an APIError that keeps err as its cause.
func Wrap(kind Kind, message string, err error) *APIError {
	return &APIError{Kind: kind, Message: message, cause: err}
}

// Validation creates a 422 error carrying per-field messages.
func Validation(message string, details map[string]string) *APIError {
	return &APIError{Kind: KindValidation, Message: message, Details: details}
}

// Internal wraps an unexpected error.
func Internal(message string, err error) *APIError {
	return Wrap(KindInternal, message, err)
}

// Predefined errors
var (
	ErrUnauthorized         = New(KindUnauthorized, "This action is unauthorized.")
	ErrForbidden            = New(KindForbidden, "Can't access to this permission")
	ErrNotFound             = New(KindNotFound, "Resource not found")
	ErrUserNotFound         = New(KindUserNotFound, "User not found!")
	ErrAlreadyAssigned      = New(KindAlreadyAssigned, "This task is already assigned to a user")
	ErrInvalidAssigneeRole  = New(KindInvalidAssigneeRole, "Can't assign task to this user")
	ErrInvalidTransition    = New(KindInvalidTransition, "Invalid task status transition")
	ErrInvalidDueDateFormat = New(KindInvalidDueDateFormat, "Invalid due date format, please use dd-mm-yyyy hh:mm")
	ErrDueDateInPast        = New(KindDueDateInPast, "Due date must be a future date.")
	ErrNoFieldsProvided     = New(KindNoFieldsProvided, "Not Found Data in Request!")
	ErrNotDeleted           = New(KindNotDeleted, "This resource isn't deleted")
	ErrStorageFailure       = New(KindStorageFailure, "Failed to store file")
	ErrInternal             = New(KindInternal, "Internal server error")
)

// From converts any error into an APIError. Errors that are not already
// APIErrors are reported as internal errors.
func From(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("Internal server error", err)
}

// Respond writes err using the failure envelope and aborts the chain.
func Respond(c *gin.Context, err error) {
	apiErr := From(err)
	if apiErr.Kind == KindInternal || apiErr.Kind == KindStorageFailure {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(apiErr.Status(), apiErr)
}

// Helper functions for common error responses

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = ErrUnauthorized.Message
	}
	Respond(c, New(KindUnauthorized, message))
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = ErrForbidden.Message
	}
	Respond(c, New(KindForbidden, message))
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = ErrNotFound.Message
	}
	Respond(c, New(KindNotFound, message))
}

// BadRequest sends a 422 response for malformed input
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request"
	}
	Respond(c, Validation(message, nil))
}

// BadRequestWithDetails sends a 422 response with per-field details
func BadRequestWithDetails(c *gin.Context, message string, details map[string]string) {
	Respond(c, Validation(message, details))
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = ErrInternal.Message
	}
	Respond(c, New(KindInternal, message))
}
