package service

import (
	"log/slog"
	"time"

	"github.com/phrazzld/mailtriage/internal/classify"
	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/task"
)

// PipelineOptions tunes how a batch is classified.
type PipelineOptions struct {
	// Orchestrator bounds concurrency and sets the progress cadence.
	Orchestrator task.Config

	// Retry is applied to every classification call.
	Retry task.RetryPolicy

	// Timeout bounds one classification, retries included. Zero disables it.
	Timeout time.Duration

	// DetachGrace is how long a timed-out call may run before it is reported
	// as stuck. Its slot stays held until it returns.
	DetachGrace time.Duration
}

// DefaultPipelineOptions returns the standard settings: five concurrent calls,
// eight attempts and a two minute timeout.
func DefaultPipelineOptions(logger *slog.Logger) PipelineOptions {
	return PipelineOptions{
		Orchestrator: task.DefaultConfig(),
		Retry:        task.DefaultRetryPolicy(logger),
		Timeout:      task.DefaultTimeout,
		DetachGrace:  task.DefaultDetachGrace,
	}
}

// pipeline classifies batches of emails. The supervisor outlives single runs
// so detached calls can be drained on shutdown.
type pipeline struct {
	orchestrator *task.Orchestrator[domain.Email, domain.Classification]
	worker       task.Worker[domain.Email, domain.Classification]
	supervisor   *task.Supervisor
}

func newPipeline(classifier classify.Classifier, opts PipelineOptions, logger *slog.Logger) *pipeline {
	supervisor := task.NewSupervisor(opts.DetachGrace, logger)

	op := task.Retry(opts.Retry, classify.Operation(classifier))
	guard := task.NewTimeoutGuard[domain.Email, domain.Classification](opts.Timeout, classify.Fallback, supervisor, logger)

	return &pipeline{
		orchestrator: task.NewOrchestrator[domain.Email, domain.Classification](opts.Orchestrator, logger),
		worker:       guard.Wrap(op),
		supervisor:   supervisor,
	}
}
