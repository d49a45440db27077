// Package service provides business logic for the application.
package service

import (
	"errors"

	"github.com/orgdir/orgdir/internal/validation"
)

// Error kinds. Every error returned by a service matches exactly one of them
// under errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage error")
)

// Error is a classified service failure.
// Message is safe to return to clients; Err carries the underlying cause.
type Error struct {
	Kind    error
	Message string
	Fields  []validation.FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func validationError(message string, fields ...validation.FieldError) *Error {
	return &Error{Kind: ErrValidation, Message: message, Fields: fields}
}

func notFoundError(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func conflictError(message string, cause error) *Error {
	return &Error{Kind: ErrConflict, Message: message, Err: cause}
}

func storageError(message string, cause error) *Error {
	return &Error{Kind: ErrStorage, Message: message, Err: cause}
}

// requiredText rejects a present field that is null or empty.
func requiredText(field string, present, null bool, value string) *validation.FieldError {
	if !present {
		return nil
	}
	if null || value == "" {
		return &validation.FieldError{Field: field, Error: "cannot be empty"}
	}
	return nil
}
