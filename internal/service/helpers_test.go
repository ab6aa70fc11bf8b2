package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/events"
	"github.com/phrazzld/mailtriage/internal/idempotency"
	"github.com/phrazzld/mailtriage/internal/logstore"
	"github.com/phrazzld/mailtriage/internal/mocks"
	"github.com/phrazzld/mailtriage/internal/task"
)

const storePath = "/state/processed.log"

var fixedNow = time.Date(2025, 4, 28, 16, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// harness wires a TriageService with in-memory state and mock collaborators.
type harness struct {
	fs         afero.Fs
	store      *logstore.Store
	filter     *idempotency.Filter
	source     *mocks.MockSource
	classifier *mocks.MockClassifier
	sink       *mocks.MockSink
	opts       TriageOptions
}

func newHarness(t *testing.T, emails ...domain.Email) *harness {
	t.Helper()

	h := &harness{
		fs:         afero.NewMemMapFs(),
		source:     &mocks.MockSource{Emails: emails},
		classifier: &mocks.MockClassifier{},
		sink:       &mocks.MockSink{SinkName: "recorder"},
		opts:       testOptions(),
	}
	h.reopen(t)
	return h
}

// reopen simulates a process restart on the same state file.
func (h *harness) reopen(t *testing.T) {
	t.Helper()

	if h.store != nil {
		require.NoError(t, h.store.Close())
	}
	s, err := logstore.Open(storePath, logstore.WithFs(h.fs), logstore.WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	h.store = s
	h.filter = idempotency.NewFilter(s, discardLogger())
}

func (h *harness) service() *TriageService {
	emitter := events.NewInMemoryEventEmitter(discardLogger())
	emitter.RegisterHandler(h.sink)
	return NewTriageService(h.source, h.classifier, h.filter, emitter, h.opts, discardLogger())
}

func testPipelineOptions() PipelineOptions {
	return PipelineOptions{
		Orchestrator: task.Config{Concurrency: 2, ProgressEvery: 1},
		Retry: task.RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			Sleep:       noSleep,
			Rand:        func() float64 { return 0 },
		},
		Timeout:     time.Second,
		DetachGrace: time.Second,
	}
}

func testOptions() TriageOptions {
	return TriageOptions{
		Pipeline: testPipelineOptions(),
		Lookback: 24 * time.Hour,
		Limit:    50,
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	}
}

func email(id, subject string) domain.Email {
	return domain.Email{ID: id, Subject: subject, Body: "body of " + id}
}

// importantIf flags emails whose key is in keys.
func importantIf(keys ...string) func(context.Context, domain.Email) (domain.Classification, error) {
	set := map[string]bool{}
	for _, k := range keys {
		set[k] = true
	}
	return func(_ context.Context, e domain.Email) (domain.Classification, error) {
		return domain.Classification{Important: set[e.Key()], Summary: "summary of " + e.Key()}, nil
	}
}
