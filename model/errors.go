package model

import (
	"errors"
	"fmt"
)

// Standard error codes.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrForbidden          = "FORBIDDEN"
	ErrNotFound           = "NOT_FOUND"
	ErrValidationError    = "VALIDATION_ERROR"
	ErrRateLimited        = "RATE_LIMITED"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrBackendError       = "BACKEND_ERROR"
)

// Workflow-specific error codes.
const (
	ErrDefinitionNotFound   = "DEFINITION_NOT_FOUND"
	ErrNoActiveInstance     = "NO_ACTIVE_INSTANCE"
	ErrStepNotFound         = "STEP_NOT_FOUND"
	ErrActionExecutionError = "ACTION_EXECUTION_ERROR"
)

// ErrorEnvelope is the error type returned by every layer of the server.
// It implements the error interface. Cause, when set, is the underlying
// failure and is reachable through errors.Unwrap.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
	Cause   error        `json:"-"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ErrorEnvelope) Unwrap() error {
	return e.Cause
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewBackendUnavailableError returns a BACKEND_UNAVAILABLE error with the
// given message.
func NewBackendUnavailableError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBackendUnavailable, Message: msg}
}

// NewBackendError returns a BACKEND_ERROR for failures reported by the issue
// tracker that have no more specific code.
func NewBackendError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBackendError, Message: msg}
}

// NewRateLimitedError returns a RATE_LIMITED error.
func NewRateLimitedError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrRateLimited,
		Message: "Rate limit exceeded. Please try again later.",
	}
}

// NewDefinitionNotFoundError returns a DEFINITION_NOT_FOUND error for the
// given workflow id.
func NewDefinitionNotFoundError(id string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrDefinitionNotFound,
		Message: fmt.Sprintf("Workflow %s not found", id),
	}
}

// NewNoActiveInstanceError returns a NO_ACTIVE_INSTANCE error.
func NewNoActiveInstanceError(id string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrNoActiveInstance,
		Message: fmt.Sprintf("No active workflow found with ID: %s", id),
	}
}

// NewStepNotFoundError returns a STEP_NOT_FOUND error.
func NewStepNotFoundError(workflowID, stepID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrStepNotFound,
		Message: fmt.Sprintf("Step %s not found in workflow %s", stepID, workflowID),
	}
}

// NewActionExecutionError wraps a failure raised by an action step.
func NewActionExecutionError(cause error) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrActionExecutionError,
		Message: fmt.Sprintf("Error executing workflow action: %v", cause),
		Cause:   cause,
	}
}

// HasCode reports whether err is an *ErrorEnvelope with the given code.
func HasCode(err error, code string) bool {
	env, ok := AsEnvelope(err)
	return ok && env.Code == code
}

// AsEnvelope extracts the first *ErrorEnvelope in err's chain.
func AsEnvelope(err error) (*ErrorEnvelope, bool) {
	var env *ErrorEnvelope
	if errors.As(err, &env) {
		return env, true
	}
	return nil, false
}
