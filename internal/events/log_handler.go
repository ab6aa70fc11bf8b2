package events

import (
	"context"
	"log/slog"
)

// LogHandler writes important emails to a logger. It is the sink used when no
// external system is configured.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler returns a handler that logs to logger.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger.With("component", "log_sink")}
}

// Name implements EventHandler.
func (h *LogHandler) Name() string { return "log" }

// HandleEvent implements EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *TriageEvent) error {
	if !event.Important() {
		return nil
	}

	attrs := []any{
		"item_key", event.Key,
		"subject", event.Email.SubjectOrDefault(),
		"summary", event.Classification.Summary,
		"fallback", event.Classification.Fallback,
	}
	if ev := event.CalendarEvent; ev != nil {
		attrs = append(attrs, "start", ev.Start, "end", ev.End)
	}
	h.logger.InfoContext(ctx, "important email", attrs...)
	return nil
}
