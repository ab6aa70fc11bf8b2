package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/phrazzld/mailtriage/internal/classify"
	"github.com/phrazzld/mailtriage/internal/config"
	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/events"
	"github.com/phrazzld/mailtriage/internal/logstore"
	"github.com/phrazzld/mailtriage/internal/platform/gemini"
	"github.com/phrazzld/mailtriage/internal/platform/google"
	"github.com/phrazzld/mailtriage/internal/platform/kafka"
	"github.com/phrazzld/mailtriage/internal/platform/logger"
	"github.com/phrazzld/mailtriage/internal/platform/openai"
	telemetry "github.com/phrazzld/mailtriage/internal/platform/otel"
	"github.com/phrazzld/mailtriage/internal/platform/postgres"
	"github.com/phrazzld/mailtriage/internal/service"
	"github.com/phrazzld/mailtriage/internal/task"
)

// App carries the resources shared by the commands of one process.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Location *time.Location

	cmd        *cobra.Command
	deps       Dependencies
	googleOpts []option.ClientOption
	cleanups   []func()
	fs         afero.Fs
}

// NewApp creates the logger and resolves the configured time zone.
func NewApp(cmd *cobra.Command, cfg *config.Config, deps Dependencies) (*App, error) {
	log, err := logger.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	loc, err := domain.LoadLocation(cfg.Pipeline.TimeZone)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid pipeline.timezone", err)
	}
	return &App{
		Config:   cfg,
		Logger:   log,
		Location: loc,
		cmd:      cmd,
		deps:     deps,
		fs:       afero.NewOsFs(),
	}, nil
}

// Close releases everything the app opened, in reverse order.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

func (a *App) onClose(fn func()) {
	a.cleanups = append(a.cleanups, fn)
}

// StartTelemetry installs the tracer provider and flushes it on Close.
func (a *App) StartTelemetry(ctx context.Context) error {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: a.Config.Telemetry.ServiceName,
		UseStdout:   a.Config.Telemetry.Stdout,
		Writer:      a.cmd.ErrOrStderr(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize tracing", err)
	}
	a.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		closeQuietly(a.Logger, "tracer provider", func() error { return shutdown(ctx) })
	})
	return nil
}

// OpenStore opens the processed-items log.
func (a *App) OpenStore() (*logstore.Store, error) {
	s, err := logstore.Open(a.Config.Store.Path,
		logstore.WithFs(a.fs),
		logstore.WithLogger(a.Logger),
		logstore.WithCompactThreshold(a.Config.Store.CompactThreshold),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open state log", err)
	}
	a.onClose(func() { closeQuietly(a.Logger, "state log", s.Close) })
	return s, nil
}

// PipelineOptions translates the pipeline configuration.
func (a *App) PipelineOptions() service.PipelineOptions {
	p := a.Config.Pipeline

	retry := task.DefaultRetryPolicy(a.Logger)
	retry.MaxAttempts = p.MaxAttempts
	retry.BaseDelay = p.BaseDelay

	return service.PipelineOptions{
		Orchestrator: task.Config{
			Concurrency:   p.Concurrency,
			ProgressEvery: p.ProgressEvery,
		},
		Retry:       retry,
		Timeout:     p.Timeout,
		DetachGrace: p.DetachGrace,
	}
}

// DrainTimeout bounds how long the process waits at exit for timed-out
// classifications to return. Without a grace period it allows one more
// classification timeout.
func (a *App) DrainTimeout() time.Duration {
	if g := a.Config.Pipeline.DetachGrace; g > 0 {
		return g
	}
	return a.Config.Pipeline.Timeout
}

// Classifier builds the configured classifier, paced by the request limit.
func (a *App) Classifier(ctx context.Context) (classify.Classifier, error) {
	c, err := a.deps.NewClassifier(ctx, a)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create classifier", err)
	}
	return classify.NewLimited(c, a.Config.LLM.RequestsPerSecond, a.Config.LLM.Burst), nil
}

// Source builds the mailbox.
func (a *App) Source(ctx context.Context) (service.Source, error) {
	src, err := a.deps.NewSource(ctx, a)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to connect to mailbox", err)
	}
	return src, nil
}

// GoogleOptions authorizes against Google once per process.
func (a *App) GoogleOptions(ctx context.Context) ([]option.ClientOption, error) {
	if a.googleOpts != nil {
		return a.googleOpts, nil
	}

	g := a.Config.Google
	oauthCfg, err := google.LoadOAuthConfig(a.fs, g.CredentialsPath, google.Scopes...)
	if err != nil {
		return nil, err
	}
	auth := google.NewAuthenticator(oauthCfg, a.fs, g.TokenPath,
		a.cmd.InOrStdin(), a.cmd.ErrOrStderr(), a.Logger)
	client, err := auth.Client(ctx)
	if err != nil {
		return nil, err
	}

	a.googleOpts = []option.ClientOption{option.WithHTTPClient(client)}
	return a.googleOpts, nil
}

// Emitter registers the configured sinks.
func (a *App) Emitter(ctx context.Context) (*events.InMemoryEventEmitter, error) {
	sinks := a.Config.Sinks
	emitter := events.NewInMemoryEventEmitter(a.Logger)

	if sinks.Log {
		emitter.RegisterHandler(events.NewLogHandler(a.Logger))
	}

	if sinks.Calendar {
		opts, err := a.GoogleOptions(ctx)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to authorize calendar", err)
		}
		cal, err := google.NewCalendar(ctx, a.Config.Google.CalendarID, a.Logger, opts...)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create calendar sink", err)
		}
		emitter.RegisterHandler(cal)
	}

	if sinks.Postgres.Enabled {
		db, err := a.OpenDatabase(ctx)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db, "up", a.Logger); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to migrate database", err)
		}
		emitter.RegisterHandler(postgres.NewResultStore(db, a.Logger))
	}

	if sinks.Kafka.Enabled {
		producer := kafka.NewProducer(kafka.NewWriter(sinks.Kafka.Brokers, sinks.Kafka.Topic), a.Logger)
		a.onClose(func() { closeQuietly(a.Logger, "kafka producer", producer.Close) })
		emitter.RegisterHandler(producer)
	}

	a.Logger.InfoContext(ctx, "sinks configured", "sinks", emitter.HandlerNames())
	return emitter, nil
}

// OpenDatabase connects to the configured Postgres database.
func (a *App) OpenDatabase(ctx context.Context) (*sql.DB, error) {
	url := a.Config.Sinks.Postgres.URL
	if url == "" {
		return nil, NewExitError(ExitCommandError, "sinks.postgres.url is not set")
	}
	db, err := postgres.Open(ctx, url, a.Logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to connect to database", err)
	}
	a.onClose(func() { closeQuietly(a.Logger, "database", db.Close) })
	return db, nil
}

// gmailSource is the default SourceFactory.
func gmailSource(ctx context.Context, a *App) (service.Source, error) {
	opts, err := a.GoogleOptions(ctx)
	if err != nil {
		return nil, err
	}
	return google.NewMailbox(ctx, a.Config.Google.User, a.Logger, opts...)
}

// providerClassifier is the default ClassifierFactory.
func providerClassifier(ctx context.Context, a *App) (classify.Classifier, error) {
	llm := a.Config.LLM

	var promptOpts []classify.PromptOption
	if llm.PromptTemplatePath != "" {
		promptOpts = append(promptOpts, classify.WithTemplateFile(llm.PromptTemplatePath))
	}
	if llm.MaxBodyTokens > 0 {
		tok, err := classify.NewTokenizer(llm.Encoding)
		if err != nil {
			a.Logger.WarnContext(ctx, "body token budget disabled", "error", err)
		} else {
			promptOpts = append(promptOpts, classify.WithTokenizer(tok, llm.MaxBodyTokens))
		}
	}

	prompts, err := classify.NewPromptBuilder(a.Location, promptOpts...)
	if err != nil {
		return nil, err
	}
	parser, err := classify.NewResponseParser(a.Location)
	if err != nil {
		return nil, err
	}

	switch llm.Provider {
	case "gemini":
		return gemini.NewClassifier(ctx, a.Logger, llm, prompts, parser)
	case "openai":
		return openai.NewClassifier(a.Logger, llm, prompts, parser)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", classify.ErrInvalidConfig, llm.Provider)
	}
}
