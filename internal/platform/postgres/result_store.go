package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/mailtriage/internal/events"
)

// ErrNotFound is returned by Get for unknown item keys.
var ErrNotFound = errors.New("triage result not found")

// Result is one row of triage_results.
type Result struct {
	ItemKey         string
	EventID         uuid.UUID
	RunID           uuid.UUID
	Important       bool
	Fallback        bool
	Subject         string
	Summary         string
	ReceivedAt      *time.Time
	CalendarEventID *string
	EventStart      *time.Time
	EventEnd        *time.Time
	CreatedAt       time.Time
}

// ResultStore persists triage outcomes. Rows are keyed by item, and a second
// delivery for the same item leaves the first row untouched.
type ResultStore struct {
	db     DBTX
	logger *slog.Logger
}

var _ events.EventHandler = (*ResultStore)(nil)

// NewResultStore returns a store using db.
func NewResultStore(db DBTX, logger *slog.Logger) *ResultStore {
	return &ResultStore{
		db:     db,
		logger: logger.With("component", "postgres_sink"),
	}
}

// Name implements events.EventHandler.
func (s *ResultStore) Name() string { return "postgres" }

const insertResultQuery = `
	INSERT INTO triage_results (
		item_key, event_id, run_id, important, fallback, subject, summary,
		received_at, calendar_event_id, event_start, event_end, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (item_key) DO NOTHING
`

// HandleEvent records the outcome of event.
func (s *ResultStore) HandleEvent(ctx context.Context, event *events.TriageEvent) error {
	var (
		receivedAt      *time.Time
		calendarEventID *string
		start, end      *time.Time
	)
	if !event.Email.ReceivedAt.IsZero() {
		t := event.Email.ReceivedAt.UTC()
		receivedAt = &t
	}
	if ev := event.CalendarEvent; ev != nil {
		id := ev.ID
		from, to := ev.Start.UTC(), ev.End.UTC()
		calendarEventID, start, end = &id, &from, &to
	}

	res, err := s.db.ExecContext(ctx, insertResultQuery,
		event.Key,
		event.ID,
		event.RunID,
		event.Classification.Important,
		event.Classification.Fallback,
		event.Email.SubjectOrDefault(),
		event.Classification.Summary,
		receivedAt,
		calendarEventID,
		start,
		end,
		event.CreatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record triage result",
			"item_key", event.Key,
			"error", err)
		return fmt.Errorf("record triage result %s: %w", event.Key, MapError(err))
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.DebugContext(ctx, "triage result already recorded", "item_key", event.Key)
	}
	return nil
}

const getResultQuery = `
	SELECT item_key, event_id, run_id, important, fallback, subject, summary,
		received_at, calendar_event_id, event_start, event_end, created_at
	FROM triage_results
	WHERE item_key = $1
`

// Get returns the stored result for key.
func (s *ResultStore) Get(ctx context.Context, key string) (*Result, error) {
	var r Result
	err := s.db.QueryRowContext(ctx, getResultQuery, key).Scan(
		&r.ItemKey,
		&r.EventID,
		&r.RunID,
		&r.Important,
		&r.Fallback,
		&r.Subject,
		&r.Summary,
		&r.ReceivedAt,
		&r.CalendarEventID,
		&r.EventStart,
		&r.EventEnd,
		&r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get triage result %s: %w", key, MapError(err))
	}
	return &r, nil
}

const countByRunQuery = `SELECT COUNT(*) FROM triage_results WHERE run_id = $1`

// CountByRun returns how many results a run recorded.
func (s *ResultStore) CountByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countByRunQuery, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count triage results: %w", MapError(err))
	}
	return n, nil
}
