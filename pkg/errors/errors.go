package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates the operation does not fit the current state
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates a failure of an external collaborator
	// (data loader, persistence, revelation service)
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeInvalidSlot indicates a time slot that is not currently offered
	ErrorTypeInvalidSlot ErrorType = "INVALID_SLOT"

	// ErrorTypeIncompleteSelection indicates a confirm before location, date and slot are set
	ErrorTypeIncompleteSelection ErrorType = "INCOMPLETE_SELECTION"

	// ErrorTypeQuotaExhausted indicates the contact allowance is used up
	ErrorTypeQuotaExhausted ErrorType = "QUOTA_EXHAUSTED"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError of the same type, so errors.Is(err, &AppError{Type: t}) works
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// TypeOf returns the type of the first AppError in err's chain, or "" if none
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err's chain carries an AppError of type t
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewInvalidSlotError creates an error for a slot that is not on offer
func NewInvalidSlotError(slot string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidSlot,
		Message: fmt.Sprintf("time slot %q is not available", slot),
	}
}

// NewIncompleteSelectionError creates an error for a premature confirm
func NewIncompleteSelectionError(missing ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeIncompleteSelection,
		Message: fmt.Sprintf("selection incomplete: missing %v", missing),
	}
}

// NewQuotaExhaustedError creates an error for a used-up contact allowance
func NewQuotaExhaustedError(allowance int) *AppError {
	return &AppError{
		Type:    ErrorTypeQuotaExhausted,
		Message: fmt.Sprintf("contact request allowance of %d exhausted", allowance),
	}
}
