package domain

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Calendar event defaults.
const (
	DefaultTimeZone      = "America/Los_Angeles"
	DefaultEventDuration = 30 * time.Minute
)

// eventNamespace scopes the deterministic event IDs.
var eventNamespace = uuid.MustParse("6c1c3f0e-4a61-5d8a-9a5e-0d2f8f4b7a10")

// CalendarEvent is the side effect produced for an important email.
type CalendarEvent struct {
	// ID is derived from SourceKey so repeated deliveries of the same email
	// address the same event.
	ID          string    `json:"id"`
	SourceKey   string    `json:"source_key"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TimeZone    string    `json:"timezone"`
}

// EventID returns the calendar event ID for an item key. The result uses only
// lowercase hex digits, which calendar providers accept as client-chosen IDs.
func EventID(key string) string {
	id := uuid.NewSHA1(eventNamespace, []byte(key))
	return hex.EncodeToString(id[:])
}

// LoadLocation resolves a time zone name, using DefaultTimeZone for "".
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnknownTimeZone, name, err)
	}
	return loc, nil
}

// NewCalendarEvent builds the event for an important email. Missing times are
// filled in with a DefaultEventDuration window: no times at all means starting
// now, a lone start or end is extended by the default duration. Times are
// expressed in loc.
func NewCalendarEvent(email Email, c Classification, now time.Time, loc *time.Location) (*CalendarEvent, error) {
	if !c.Important {
		return nil, ErrNotImportant
	}
	if loc == nil {
		loc = time.UTC
	}

	var start, end *time.Time
	if c.Event != nil {
		start, end = c.Event.Start, c.Event.End
	}

	var from, to time.Time
	switch {
	case start == nil && end == nil:
		from = now.In(loc)
		to = from.Add(DefaultEventDuration)
	case end == nil:
		from = start.In(loc)
		to = from.Add(DefaultEventDuration)
	case start == nil:
		to = end.In(loc)
		from = to.Add(-DefaultEventDuration)
	default:
		from, to = start.In(loc), end.In(loc)
	}

	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidTimeRange,
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	return &CalendarEvent{
		ID:          EventID(email.Key()),
		SourceKey:   email.Key(),
		Title:       email.SubjectOrDefault(),
		Description: email.BodyOrDefault(),
		Start:       from,
		End:         to,
		TimeZone:    loc.String(),
	}, nil
}
