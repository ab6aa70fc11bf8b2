package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/phrazzld/mailtriage/internal/classify"
	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/events"
	"github.com/phrazzld/mailtriage/internal/idempotency"
	"github.com/phrazzld/mailtriage/internal/task"
)

const tracerName = "github.com/phrazzld/mailtriage/internal/service"

// Source supplies the batch of emails to triage.
type Source interface {
	// Fetch returns up to limit emails received within lookback.
	Fetch(ctx context.Context, lookback time.Duration, limit int) ([]domain.Email, error)
}

// TriageOptions configures a TriageService.
type TriageOptions struct {
	Pipeline PipelineOptions

	// Lookback and Limit are passed to Source.Fetch.
	Lookback time.Duration
	Limit    int

	// Location interprets event times without an explicit zone.
	Location *time.Location

	// DryRun classifies and reports without delivering or recording anything.
	DryRun bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Progress receives batch progress. May be nil.
	Progress task.ProgressFunc
}

// TriageService runs triage batches.
type TriageService struct {
	source   Source
	filter   *idempotency.Filter
	emitter  events.EventEmitter
	pipeline *pipeline
	opts     TriageOptions
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewTriageService wires a service. The classifier is called through the
// retry policy and timeout guard of opts.Pipeline.
func NewTriageService(
	source Source,
	classifier classify.Classifier,
	filter *idempotency.Filter,
	emitter events.EventEmitter,
	opts TriageOptions,
	logger *slog.Logger,
) *TriageService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	logger = logger.With("component", "triage_service")

	p := newPipeline(classifier, opts.Pipeline, logger)
	p.orchestrator.SetProgressFunc(opts.Progress)

	return &TriageService{
		source:   source,
		filter:   filter,
		emitter:  emitter,
		pipeline: p,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// Run triages one batch. Item-level problems are reported in the Report; an
// error is returned only when the batch could not be fetched or progress
// could not be recorded.
func (s *TriageService) Run(ctx context.Context) (*Report, error) {
	runID := uuid.New()
	ctx, span := s.tracer.Start(ctx, "TriageService.Run", trace.WithAttributes(
		attribute.String("run.id", runID.String()),
		attribute.Bool("run.dry_run", s.opts.DryRun),
	))
	defer span.End()

	start := s.opts.Now()
	log := s.logger.With("run_id", runID)
	report := &Report{RunID: runID, DryRun: s.opts.DryRun}

	unfinished := s.filter.Unfinished()
	if len(unfinished) > 0 {
		log.WarnContext(ctx, "previous run left unfinished deliveries",
			"count", len(unfinished))
	}

	emails, err := s.source.Fetch(ctx, s.opts.Lookback, s.opts.Limit)
	if err != nil {
		span.RecordError(err)
		return nil, NewServiceError("fetch", "could not read batch", fmt.Errorf("%w: %w", ErrFetch, err))
	}
	report.Fetched = len(emails)

	valid := make([]domain.Email, 0, len(emails))
	for _, email := range emails {
		if err := email.Validate(); err != nil {
			report.Invalid++
			log.WarnContext(ctx, "skipping invalid email",
				"thread_id", email.ThreadID,
				"error", err)
			continue
		}
		valid = append(valid, email)
	}

	pending := idempotency.Pending(s.filter, valid)
	report.Skipped = len(valid) - len(pending)
	report.Recovered = countRecovered(unfinished, pending)

	log.InfoContext(ctx, "triage batch ready",
		"fetched", report.Fetched,
		"pending", len(pending),
		"skipped", report.Skipped,
		"recovered", report.Recovered)

	results := s.pipeline.orchestrator.Run(ctx, pending, s.pipeline.worker)

	for i, res := range results {
		outcome, err := s.handle(ctx, log, runID, pending[i], res)
		report.add(outcome)
		if err != nil {
			span.RecordError(err)
			report.Duration = s.opts.Now().Sub(start)
			return report, err
		}
	}

	report.Duration = s.opts.Now().Sub(start)
	span.SetAttributes(
		attribute.Int("run.important", report.Important),
		attribute.Int("run.failed", report.Failed),
	)
	log.InfoContext(ctx, "triage run finished",
		"classified", report.Classified,
		"important", report.Important,
		"fallbacks", report.Fallbacks,
		"failed", report.Failed,
		"delivered", report.Delivered,
		"delivery_failed", report.DeliveryFailed,
		"duration", report.Duration)

	return report, nil
}

// handle acts on one classification result.
func (s *TriageService) handle(
	ctx context.Context,
	log *slog.Logger,
	runID uuid.UUID,
	email domain.Email,
	res task.Result[domain.Classification],
) (Outcome, error) {
	outcome := Outcome{
		Key:      email.Key(),
		Subject:  email.SubjectOrDefault(),
		Status:   res.Status,
		Err:      res.Err,
		Duration: res.Duration,
	}

	if !res.Usable() {
		log.ErrorContext(ctx, "classification failed, item left pending",
			"item_key", email.Key(),
			"error", res.Err)
		return outcome, nil
	}
	outcome.Classification = res.Value

	var calendarEvent *domain.CalendarEvent
	if res.Value.Important {
		calendarEvent = s.calendarEvent(ctx, log, email, res.Value)
		if calendarEvent != nil {
			outcome.EventID = calendarEvent.ID
		}
	}

	if s.opts.DryRun {
		return outcome, nil
	}

	event := events.NewTriageEvent(runID, email, res.Value, calendarEvent, s.opts.Now())
	if err := s.filter.BeginAction(email.Key(), event.ID.String()); err != nil {
		return outcome, NewServiceError("record_intent", email.Key(), fmt.Errorf("%w: %w", ErrState, err))
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		outcome.Err = err
		outcome.DeliveryFailed = true
		log.ErrorContext(ctx, "delivery failed, item will be retried next run",
			"item_key", email.Key(),
			"error", err)
		return outcome, nil
	}

	if err := s.filter.CompleteAction(email.Key()); err != nil {
		return outcome, NewServiceError("record_processed", email.Key(), fmt.Errorf("%w: %w", ErrState, err))
	}
	outcome.Delivered = true
	return outcome, nil
}

// calendarEvent builds the event of an important email. An impossible time
// window extracted by the model is replaced by the default window.
func (s *TriageService) calendarEvent(
	ctx context.Context,
	log *slog.Logger,
	email domain.Email,
	c domain.Classification,
) *domain.CalendarEvent {
	now := s.opts.Now()
	ev, err := domain.NewCalendarEvent(email, c, now, s.opts.Location)
	if err == nil {
		return ev
	}

	log.WarnContext(ctx, "discarding extracted event time",
		"item_key", email.Key(),
		"error", err)
	c.Event = nil
	ev, err = domain.NewCalendarEvent(email, c, now, s.opts.Location)
	if err != nil {
		log.ErrorContext(ctx, "could not build calendar event",
			"item_key", email.Key(),
			"error", err)
		return nil
	}
	return ev
}

// Drain waits for timed-out classifications that are still running.
func (s *TriageService) Drain(ctx context.Context) error {
	if n := s.pipeline.supervisor.Detached(); n > 0 {
		s.logger.InfoContext(ctx, "waiting for detached classifications", "count", n)
	}
	return s.pipeline.supervisor.Wait(ctx)
}

func countRecovered(unfinished []idempotency.Intent, pending []domain.Email) int {
	if len(unfinished) == 0 {
		return 0
	}
	keys := make(map[string]struct{}, len(unfinished))
	for _, in := range unfinished {
		keys[in.Key] = struct{}{}
	}
	n := 0
	for _, email := range pending {
		if _, ok := keys[email.Key()]; ok {
			n++
		}
	}
	return n
}

// Outcome is what happened to one pending email.
type Outcome struct {
	Key            string
	Subject        string
	Status         task.Status
	Classification domain.Classification
	EventID        string
	Delivered      bool
	DeliveryFailed bool
	Err            error
	Duration       time.Duration
}

// Report summarizes a triage run.
type Report struct {
	RunID  uuid.UUID
	DryRun bool

	Fetched   int
	Invalid   int
	Skipped   int
	Recovered int

	Classified     int
	Important      int
	Fallbacks      int
	Failed         int
	Delivered      int
	DeliveryFailed int

	Outcomes []Outcome
	Duration time.Duration
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case task.StatusFailed:
		r.Failed++
		return
	case task.StatusFallback:
		r.Fallbacks++
	}
	r.Classified++
	if o.Classification.Important {
		r.Important++
	}
	if o.Delivered {
		r.Delivered++
	}
	if o.DeliveryFailed {
		r.DeliveryFailed++
	}
}

// ImportantOutcomes returns the outcomes of important emails in batch order.
func (r *Report) ImportantOutcomes() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status != task.StatusFailed && o.Classification.Important {
			out = append(out, o)
		}
	}
	return out
}

// Summary renders a one-line description of the run.
func (r *Report) Summary() string {
	var b strings.Builder
	if r.DryRun {
		b.WriteString("[dry run] ")
	}
	fmt.Fprintf(&b, "fetched %d, skipped %d, classified %d (%d important, %d fallback), failed %d",
		r.Fetched, r.Skipped, r.Classified, r.Important, r.Fallbacks, r.Failed)
	if !r.DryRun {
		fmt.Fprintf(&b, ", delivered %d", r.Delivered)
		if r.DeliveryFailed > 0 {
			fmt.Fprintf(&b, ", delivery failed %d", r.DeliveryFailed)
		}
	}
	return b.String()
}
