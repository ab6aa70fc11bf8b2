package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/phrazzld/mailtriage/internal/classify"
	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/task"
)

// EvaluationReport scores a classifier against labeled emails.
type EvaluationReport struct {
	domain.Confusion

	// Sampled is the number of labeled emails sent to the classifier.
	Sampled int
	// Fallbacks counts timed-out emails, scored with their fallback verdict.
	Fallbacks int
	// Failed counts emails without a verdict. They are not scored.
	Failed int
}

// EvaluationService measures classification quality.
type EvaluationService struct {
	pipeline *pipeline
	logger   *slog.Logger
}

// NewEvaluationService returns a service using the same retry, timeout and
// concurrency settings as a triage run.
func NewEvaluationService(classifier classify.Classifier, opts PipelineOptions, logger *slog.Logger) *EvaluationService {
	logger = logger.With("component", "evaluation_service")
	return &EvaluationService{
		pipeline: newPipeline(classifier, opts, logger),
		logger:   logger,
	}
}

// Sample returns min(n, len(dataset)) entries chosen uniformly without
// replacement. A non-positive n selects the whole dataset.
func Sample(dataset []domain.LabeledEmail, n int, rng *rand.Rand) []domain.LabeledEmail {
	if n <= 0 || n > len(dataset) {
		n = len(dataset)
	}
	out := make([]domain.LabeledEmail, 0, n)
	for _, i := range rng.Perm(len(dataset))[:n] {
		out = append(out, dataset[i])
	}
	return out
}

// Evaluate classifies a sample of n labeled emails and compares the verdicts
// with the labels.
func (s *EvaluationService) Evaluate(
	ctx context.Context,
	dataset []domain.LabeledEmail,
	n int,
	rng *rand.Rand,
) (*EvaluationReport, error) {
	if len(dataset) == 0 {
		return nil, ErrEmptyDataset
	}

	sample := Sample(dataset, n, rng)
	emails := make([]domain.Email, len(sample))
	for i, l := range sample {
		emails[i] = domain.Email{
			ID:      fmt.Sprintf("eval-%d", i),
			Subject: l.Subject,
			Body:    l.Body,
		}
	}

	results := s.pipeline.orchestrator.Run(ctx, emails, s.pipeline.worker)

	report := &EvaluationReport{Sampled: len(sample)}
	for i, res := range results {
		switch res.Status {
		case task.StatusFailed:
			report.Failed++
			s.logger.WarnContext(ctx, "evaluation item failed",
				"item_key", res.Key,
				"error", res.Err)
			continue
		case task.StatusFallback:
			report.Fallbacks++
		}
		report.Add(res.Value.Important, sample[i].IsImportant)
	}

	s.logger.InfoContext(ctx, "evaluation finished",
		"sampled", report.Sampled,
		"tp", report.TruePositives,
		"fp", report.FalsePositives,
		"tn", report.TrueNegatives,
		"fn", report.FalseNegatives,
		"failed", report.Failed)
	return report, nil
}

// Drain waits for timed-out classifications that are still running.
func (s *EvaluationService) Drain(ctx context.Context) error {
	return s.pipeline.supervisor.Wait(ctx)
}
