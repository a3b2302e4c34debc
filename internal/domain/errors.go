package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCaseNotFound            = errors.New("case not found")
	ErrCheckNotFound           = errors.New("check not found")
	ErrDuplicateOrder          = errors.New("order already has a case")
	ErrVendorReferenceConflict = errors.New("vendor reference already assigned to another check")
	ErrVersionConflict         = errors.New("case was modified concurrently")
)

// ValidationError reports a malformed payload field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RepositoryError wraps a failure from the storage collaborator. It is never retried here.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
