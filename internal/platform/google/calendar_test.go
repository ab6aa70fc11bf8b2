package google

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/events"
)

func importantEvent(t *testing.T) *events.TriageEvent {
	t.Helper()

	loc, err := domain.LoadLocation(domain.DefaultTimeZone)
	require.NoError(t, err)

	email := domain.Email{ID: "m1", Subject: "Design review", Body: "Room 4"}
	c := domain.Classification{Important: true, Summary: "review"}
	now := time.Date(2025, 4, 28, 16, 0, 0, 0, time.UTC)
	ev, err := domain.NewCalendarEvent(email, c, now, loc)
	require.NoError(t, err)

	return events.NewTriageEvent(uuid.New(), email, c, ev, now)
}

func TestToCalendarEvent(t *testing.T) {
	t.Parallel()

	ev := importantEvent(t).CalendarEvent
	got := ToCalendarEvent(ev)

	assert.Equal(t, domain.EventID("m1"), got.Id)
	assert.Equal(t, "Design review", got.Summary)
	assert.Equal(t, "Room 4", got.Description)
	assert.Equal(t, "2025-04-28T09:00:00-07:00", got.Start.DateTime)
	assert.Equal(t, "2025-04-28T09:30:00-07:00", got.End.DateTime)
	assert.Equal(t, domain.DefaultTimeZone, got.Start.TimeZone)
}

func TestCalendar_HandleEvent(t *testing.T) {
	t.Parallel()

	t.Run("inserts important events", func(t *testing.T) {
		var inserted calendar.Event
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			assert.True(t, strings.HasSuffix(r.URL.Path, "/calendars/primary/events"), r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&inserted))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id":%q}`, inserted.Id)
		})

		ctx := testContext(t)
		cal, err := NewCalendar(ctx, "", discardLogger(), apiOptions(srv)...)
		require.NoError(t, err)
		assert.Equal(t, "calendar", cal.Name())

		require.NoError(t, cal.HandleEvent(ctx, importantEvent(t)))
		assert.Equal(t, domain.EventID("m1"), inserted.Id)
	})

	t.Run("existing event counts as delivered", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"error":{"code":409,"message":"The requested identifier already exists."}}`)
		})

		ctx := testContext(t)
		cal, err := NewCalendar(ctx, "primary", discardLogger(), apiOptions(srv)...)
		require.NoError(t, err)
		assert.NoError(t, cal.HandleEvent(ctx, importantEvent(t)))
	})

	t.Run("server error", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"code":400,"message":"bad"}}`)
		})

		ctx := testContext(t)
		cal, err := NewCalendar(ctx, "primary", discardLogger(), apiOptions(srv)...)
		require.NoError(t, err)
		assert.ErrorIs(t, cal.HandleEvent(ctx, importantEvent(t)), ErrCalendar)
	})

	t.Run("routine events are ignored", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
			t.Error("unexpected request")
			w.WriteHeader(http.StatusInternalServerError)
		})

		ctx := testContext(t)
		cal, err := NewCalendar(ctx, "primary", discardLogger(), apiOptions(srv)...)
		require.NoError(t, err)

		routine := events.NewTriageEvent(uuid.New(), domain.Email{ID: "m2"}, domain.Classification{}, nil, time.Now())
		assert.NoError(t, cal.HandleEvent(ctx, routine))
	})
}
