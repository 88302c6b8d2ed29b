package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("Validation Error")
	ErrConflict      = errors.New("conflict")
	ErrUnprocessable = errors.New("unprocessable")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a request that lost a race against a newer one.
// HTTP handlers map this to 409 Conflict.
func Conflict(resource, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s: %s", resource, message),
	}
}

// Unprocessable wraps a well-formed request whose content could not be used,
// such as an upload that passed the type check but failed to decode.
// HTTP handlers map this to 422 Unprocessable Entity.
func Unprocessable(field, message string, cause error) *AppError {
	err := ErrUnprocessable
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrUnprocessable, cause)
	}
	return &AppError{
		Err:     err,
		Message: message,
		Field:   field,
	}
}
