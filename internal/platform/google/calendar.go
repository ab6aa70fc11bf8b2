package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/events"
)

// DefaultCalendarID is the authorized user's primary calendar.
const DefaultCalendarID = "primary"

// Calendar records important emails as calendar events. Event IDs derive from
// the email key, so delivering the same email twice creates one event.
type Calendar struct {
	svc        *calendar.Service
	calendarID string
	logger     *slog.Logger
}

var _ events.EventHandler = (*Calendar)(nil)

// NewCalendar returns a calendar sink writing to calendarID.
func NewCalendar(ctx context.Context, calendarID string, logger *slog.Logger, opts ...option.ClientOption) (*Calendar, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	return &Calendar{
		svc:        svc,
		calendarID: calendarID,
		logger:     logger.With("component", "calendar_sink"),
	}, nil
}

// Name implements events.EventHandler.
func (c *Calendar) Name() string { return "calendar" }

// HandleEvent inserts the calendar event of an important email.
func (c *Calendar) HandleEvent(ctx context.Context, event *events.TriageEvent) error {
	if !event.Important() || event.CalendarEvent == nil {
		return nil
	}

	ev := event.CalendarEvent
	_, err := c.svc.Events.Insert(c.calendarID, ToCalendarEvent(ev)).
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
			c.logger.DebugContext(ctx, "calendar event already exists",
				"event_id", ev.ID,
				"item_key", event.Key)
			return nil
		}
		return fmt.Errorf("%w: %s: %v", ErrCalendar, ev.ID, err)
	}

	c.logger.InfoContext(ctx, "created calendar event",
		"event_id", ev.ID,
		"item_key", event.Key,
		"start", ev.Start.Format(time.RFC3339))
	return nil
}

// ToCalendarEvent converts a domain event to the Calendar API representation.
func ToCalendarEvent(ev *domain.CalendarEvent) *calendar.Event {
	return &calendar.Event{
		Id:          ev.ID,
		Summary:     ev.Title,
		Description: ev.Description,
		Start: &calendar.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
	}
}
