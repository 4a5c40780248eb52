package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a request is malformed or out of range.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned for unknown documents and conversations.
	ErrNotFound = errors.New("not found")
	// ErrExternalService is returned when the embedding model or vector store fails.
	ErrExternalService = errors.New("external service error")
)

// ValidationError names the request field that was rejected.
// It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// WrapError prefixes err with msg. A nil err stays nil.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// External marks err as a failure of a model or store the service depends on.
func External(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrExternalService, err)
}

// IsCallerError reports whether err was caused by the request rather than the system.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotFound)
}
