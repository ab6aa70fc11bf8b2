package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/mailtriage/internal/domain"
)

// Event types.
const (
	TypeImportant = "email.important"
	TypeRoutine   = "email.routine"
)

// eventNamespace scopes deterministic event IDs.
var eventNamespace = uuid.MustParse("0b9d7e0a-92c4-5b57-8e33-7a4c1f6e2d85")

// TriageEvent is the outcome for one email.
type TriageEvent struct {
	// ID is derived from Key, so redelivering the outcome for the same email
	// carries the same ID.
	ID uuid.UUID `json:"id"`

	// Type is TypeImportant or TypeRoutine.
	Type string `json:"type"`

	// RunID identifies the triage run that produced the event.
	RunID uuid.UUID `json:"run_id"`

	// Key is the idempotency key of the email.
	Key string `json:"key"`

	Email          domain.Email          `json:"email"`
	Classification domain.Classification `json:"classification"`

	// CalendarEvent is set for important emails.
	CalendarEvent *domain.CalendarEvent `json:"calendar_event,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Important reports whether the event is about an important email.
func (e *TriageEvent) Important() bool {
	return e.Type == TypeImportant
}

// NewTriageEvent builds the event for email. calendarEvent may be nil.
func NewTriageEvent(
	runID uuid.UUID,
	email domain.Email,
	c domain.Classification,
	calendarEvent *domain.CalendarEvent,
	now time.Time,
) *TriageEvent {
	eventType := TypeRoutine
	if c.Important {
		eventType = TypeImportant
	}
	return &TriageEvent{
		ID:             uuid.NewSHA1(eventNamespace, []byte(email.Key())),
		Type:           eventType,
		RunID:          runID,
		Key:            email.Key(),
		Email:          email,
		Classification: c,
		CalendarEvent:  calendarEvent,
		CreatedAt:      now.UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers must tolerate receiving the same event more than once.
type EventHandler interface {
	// Name identifies the handler in logs and intents.
	Name() string

	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TriageEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TriageEvent) error
}
