package service

import (
	"errors"
	"fmt"
)

// Common service errors, checked with errors.Is.
var (
	// ErrFetch indicates the batch could not be read from the source.
	ErrFetch = errors.New("failed to fetch batch")

	// ErrState indicates the idempotency log could not be updated. The run
	// stops because further progress could not be recorded.
	ErrState = errors.New("failed to record progress")

	// ErrEmptyDataset indicates an evaluation without labeled emails.
	ErrEmptyDataset = errors.New("evaluation dataset is empty")
)

// ServiceError wraps errors from the service with context.
type ServiceError struct {
	// Operation is the operation that failed (e.g. "fetch", "record_intent")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
