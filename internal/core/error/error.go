package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// StreamErrorMessage is returned when a conversation turn could not be answered.
	StreamErrorMessage = "failed to generate a response"
	// NotFoundMessage is used when a record does not exist.
	NotFoundMessage = "record not found"
	// ValidationErrorMessage is returned for malformed requests.
	ValidationErrorMessage = "invalid request"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Validation marks err as a client error. Its text is not exposed; message
// is what the client sees.
func Validation(err error, message string) *AppError {
	if message == "" {
		message = ValidationErrorMessage
	}
	return New(err, http.StatusBadRequest, message)
}

// FromError returns the first AppError in err's chain, or wraps err as an
// internal error with the opaque system message.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(err, http.StatusInternalServerError, SystemErrorMessage)
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
