package domain

import (
	"fmt"
	"time"
)

// Placeholders used when a message lacks a subject or a readable body.
const (
	NoSubject = "No Subject"
	NoBody    = "No Body"
)

// Email is a message read from the mailbox.
type Email struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id,omitempty"`
	From       string    `json:"from,omitempty"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Key identifies the email across runs. It is the mailbox message ID.
func (e Email) Key() string {
	return e.ID
}

// Validate checks that the email can be processed.
func (e Email) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyEmailID)
	}
	return nil
}

// SubjectOrDefault returns the subject, or NoSubject when it is empty.
func (e Email) SubjectOrDefault() string {
	if e.Subject == "" {
		return NoSubject
	}
	return e.Subject
}

// BodyOrDefault returns the body, or NoBody when it is empty.
func (e Email) BodyOrDefault() string {
	if e.Body == "" {
		return NoBody
	}
	return e.Body
}
