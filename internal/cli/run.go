package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/mailtriage/internal/events"
	"github.com/phrazzld/mailtriage/internal/idempotency"
	"github.com/phrazzld/mailtriage/internal/redact"
	"github.com/phrazzld/mailtriage/internal/service"
	"github.com/phrazzld/mailtriage/internal/task"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	DryRun      bool
	Lookback    time.Duration
	Limit       int
	Concurrency int
}

var runBindings = map[string]string{
	"pipeline.dry_run":     "dry-run",
	"pipeline.lookback":    "lookback",
	"pipeline.limit":       "limit",
	"pipeline.concurrency": "concurrency",
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Triage recent email",
		Long: `Fetch recent email, classify every message not handled before, and deliver
the results to the configured sinks.

Examples:
  mailtriage run
  mailtriage run --lookback 48h --limit 100
  mailtriage run --dry-run --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTriage(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "classify and report without delivering or recording anything")
	cmd.Flags().DurationVar(&opts.Lookback, "lookback", 24*time.Hour, "how far back to fetch email")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum number of messages to fetch")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 5, "maximum concurrent classifications")

	return cmd
}

func runTriage(opts *RunOptions, cmd *cobra.Command) error {
	app, err := opts.newApp(cmd, runBindings)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signalContext(commandContext(cmd), app)
	defer stop()

	if err := app.StartTelemetry(ctx); err != nil {
		return err
	}

	store, err := app.OpenStore()
	if err != nil {
		return err
	}
	filter := idempotency.NewFilter(store, app.Logger)

	source, err := app.Source(ctx)
	if err != nil {
		return err
	}
	classifier, err := app.Classifier(ctx)
	if err != nil {
		return err
	}

	dryRun := app.Config.Pipeline.DryRun
	sinks := events.NewInMemoryEventEmitter(app.Logger)
	if !dryRun {
		if sinks, err = app.Emitter(ctx); err != nil {
			return err
		}
	}

	svc := service.NewTriageService(source, classifier, filter, sinks, service.TriageOptions{
		Pipeline: app.PipelineOptions(),
		Lookback: app.Config.Pipeline.Lookback,
		Limit:    app.Config.Pipeline.Limit,
		Location: app.Location,
		DryRun:   dryRun,
		Progress: func(p task.Progress) {
			app.Logger.Info("progress",
				"done", p.Done,
				"total", p.Total,
				"fallbacks", p.Fallbacks,
				"failures", p.Failures)
		},
	}, app.Logger)

	report, runErr := svc.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), app.DrainTimeout())
	if err := svc.Drain(drainCtx); err != nil {
		app.Logger.Warn("detached classifications still running at exit", "error", err)
	}
	cancel()

	if report != nil {
		if err := opts.output(cmd).Success(newReportView(report), func(w io.Writer) { printReport(w, report) }); err != nil {
			return err
		}
	}

	switch {
	case runErr != nil:
		return WrapExitError(ExitCommandError, "triage run failed", runErr)
	case errors.Is(ctx.Err(), context.Canceled):
		return NewExitError(ExitFailure, "triage run interrupted")
	case report.Failed > 0 || report.DeliveryFailed > 0:
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d classification(s) failed, %d delivery(ies) failed", report.Failed, report.DeliveryFailed))
	}
	return nil
}

// reportView is the JSON form of a run report.
type reportView struct {
	RunID          string        `json:"run_id"`
	DryRun         bool          `json:"dry_run"`
	Fetched        int           `json:"fetched"`
	Invalid        int           `json:"invalid"`
	Skipped        int           `json:"skipped"`
	Recovered      int           `json:"recovered"`
	Classified     int           `json:"classified"`
	Important      int           `json:"important"`
	Fallbacks      int           `json:"fallbacks"`
	Failed         int           `json:"failed"`
	Delivered      int           `json:"delivered"`
	DeliveryFailed int           `json:"delivery_failed"`
	DurationMS     int64         `json:"duration_ms"`
	Outcomes       []outcomeView `json:"outcomes"`
}

type outcomeView struct {
	Key       string `json:"key"`
	Subject   string `json:"subject"`
	Status    string `json:"status"`
	Important bool   `json:"important"`
	Fallback  bool   `json:"fallback,omitempty"`
	Summary   string `json:"summary,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

func newReportView(r *service.Report) reportView {
	v := reportView{
		RunID:          r.RunID.String(),
		DryRun:         r.DryRun,
		Fetched:        r.Fetched,
		Invalid:        r.Invalid,
		Skipped:        r.Skipped,
		Recovered:      r.Recovered,
		Classified:     r.Classified,
		Important:      r.Important,
		Fallbacks:      r.Fallbacks,
		Failed:         r.Failed,
		Delivered:      r.Delivered,
		DeliveryFailed: r.DeliveryFailed,
		DurationMS:     r.Duration.Milliseconds(),
		Outcomes:       make([]outcomeView, len(r.Outcomes)),
	}
	for i, o := range r.Outcomes {
		ov := outcomeView{
			Key:       o.Key,
			Subject:   o.Subject,
			Status:    o.Status.String(),
			Important: o.Classification.Important,
			Fallback:  o.Classification.Fallback,
			Summary:   o.Classification.Summary,
			EventID:   o.EventID,
			Delivered: o.Delivered,
		}
		if o.Err != nil {
			ov.Error = redact.Error(o.Err)
		}
		v.Outcomes[i] = ov
	}
	return v
}

func printReport(w io.Writer, r *service.Report) {
	fmt.Fprintln(w, r.Summary())
	for _, o := range r.ImportantOutcomes() {
		marker := "*"
		if o.Status == task.StatusFallback {
			marker = "?"
		}
		fmt.Fprintf(w, "  %s %s", marker, o.Subject)
		if o.Classification.Summary != "" {
			fmt.Fprintf(w, " - %s", o.Classification.Summary)
		}
		fmt.Fprintln(w)
	}
	for _, o := range r.Outcomes {
		if o.Status == task.StatusFailed {
			fmt.Fprintf(w, "  ! %s: %s\n", o.Key, redact.Error(o.Err))
		}
	}
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context, app *App) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			app.Logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
