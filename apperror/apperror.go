// Package apperror defines the error kinds handlers translate into HTTP
// status codes. Anything that is not an AppError is an internal error.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

type AppError struct {
	Err     error  // one of the sentinels above
	Message string // safe to return to the client
	Field   string // optional
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func Validation(message string) *AppError {
	return &AppError{Err: ErrValidation, Message: message}
}

func ValidationField(field, message string) *AppError {
	return &AppError{Err: ErrValidation, Message: message, Field: field}
}

func Forbidden(message string) *AppError {
	return &AppError{Err: ErrForbidden, Message: message}
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func Conflict(message string) *AppError {
	return &AppError{Err: ErrConflict, Message: message}
}
