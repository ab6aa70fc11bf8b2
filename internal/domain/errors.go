package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyEmailID is returned for an email without a message ID.
	ErrEmptyEmailID = errors.New("email ID cannot be empty")

	// ErrNotImportant is returned when an event is requested for an email
	// that was not classified as important.
	ErrNotImportant = errors.New("email is not important")

	// ErrInvalidTimeRange is returned when an event ends before it starts.
	ErrInvalidTimeRange = errors.New("event ends before it starts")

	// ErrUnknownTimeZone is returned for a time zone name the system cannot load.
	ErrUnknownTimeZone = errors.New("unknown time zone")
)
