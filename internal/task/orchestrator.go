package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/phrazzld/mailtriage/internal/task"

// Config holds orchestrator settings.
type Config struct {
	// Concurrency is the maximum number of workers running at once.
	Concurrency int

	// ProgressEvery is the number of completions between progress reports.
	// The final completion is always reported.
	ProgressEvery int
}

// DefaultConfig returns a configuration with five concurrent workers and a
// progress report every five completions.
func DefaultConfig() Config {
	return Config{
		Concurrency:   5,
		ProgressEvery: 5,
	}
}

// Orchestrator runs a batch of items through a worker with bounded concurrency.
type Orchestrator[I Item, R any] struct {
	config     Config
	gate       *Gate
	logger     *slog.Logger
	tracer     trace.Tracer
	onProgress ProgressFunc
}

// NewOrchestrator creates an orchestrator. Invalid settings fall back to the
// values of DefaultConfig.
func NewOrchestrator[I Item, R any](config Config, logger *slog.Logger) *Orchestrator[I, R] {
	defaults := DefaultConfig()
	if config.Concurrency < 1 {
		config.Concurrency = defaults.Concurrency
	}
	if config.ProgressEvery < 1 {
		config.ProgressEvery = defaults.ProgressEvery
	}

	return &Orchestrator[I, R]{
		config: config,
		gate:   NewGate(config.Concurrency),
		logger: logger.With("component", "task_orchestrator"),
		tracer: otel.Tracer(tracerName),
	}
}

// SetProgressFunc sets the callback for progress reports. It must be called
// before Run.
func (o *Orchestrator[I, R]) SetProgressFunc(fn ProgressFunc) {
	o.onProgress = fn
}

// Gate exposes the concurrency gate, mainly for inspection.
func (o *Orchestrator[I, R]) Gate() *Gate {
	return o.gate
}

// Run processes every item and returns once each has a result. results[i]
// belongs to items[i]. Items are admitted in input order as slots free up.
//
// If ctx is cancelled, items that have not yet been admitted get a
// StatusFailed result carrying ctx.Err().
func (o *Orchestrator[I, R]) Run(ctx context.Context, items []I, worker Worker[I, R]) []Result[R] {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Run", trace.WithAttributes(
		attribute.Int("batch.size", len(items)),
		attribute.Int("batch.concurrency", o.config.Concurrency),
	))
	defer span.End()

	start := time.Now()
	results := make([]Result[R], len(items))
	tracker := newProgressTracker(len(items), o.config.ProgressEvery, o.onProgress)

	o.logger.InfoContext(ctx, "starting batch",
		"items", len(items),
		"concurrency", o.config.Concurrency)

	var wg sync.WaitGroup
	for i, item := range items {
		slot, err := o.gate.Acquire(ctx)
		if err != nil {
			for j := i; j < len(items); j++ {
				results[j] = Result[R]{
					Index:  j,
					Key:    items[j].Key(),
					Status: StatusFailed,
					Err:    err,
				}
				tracker.complete(StatusFailed)
			}
			o.logger.WarnContext(ctx, "batch cancelled before all items were admitted",
				"admitted", i,
				"remaining", len(items)-i,
				"error", err)
			break
		}

		wg.Add(1)
		go func(index int, item I, slot *Slot) {
			defer wg.Done()
			res := o.runOne(ctx, index, item, slot, worker)
			results[index] = res
			tracker.complete(res.Status)
		}(i, item, slot)
	}
	wg.Wait()

	p := tracker.snapshot()
	span.SetAttributes(
		attribute.Int("batch.fallbacks", p.Fallbacks),
		attribute.Int("batch.failures", p.Failures),
	)
	o.logger.InfoContext(ctx, "batch finished",
		"items", len(items),
		"fallbacks", p.Fallbacks,
		"failures", p.Failures,
		"duration", time.Since(start))

	return results
}

// runOne invokes the worker for a single item and releases its slot unless
// the worker detached it.
func (o *Orchestrator[I, R]) runOne(
	ctx context.Context,
	index int,
	item I,
	slot *Slot,
	worker Worker[I, R],
) (res Result[R]) {
	key := item.Key()
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Item", trace.WithAttributes(
		attribute.String("item.key", key),
		attribute.Int("item.index", index),
	))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.ErrorContext(ctx, "worker panicked",
				"item_key", key,
				"panic", r)
			res = Result[R]{Status: StatusFailed, Err: fmt.Errorf("%w: %v", ErrWorkerPanic, r)}
		}
		if !slot.Detached() {
			slot.Release()
		}

		res.Index = index
		res.Key = key
		res.Duration = time.Since(start)

		span.SetAttributes(attribute.String("item.status", res.Status.String()))
		if res.Status == StatusFailed {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "item failed")
			o.logger.ErrorContext(ctx, "item failed",
				"item_key", key,
				"error", res.Err)
		}
		span.End()
	}()

	return worker(ctx, item, slot)
}

// progressTracker counts completions and emits serialized progress reports.
type progressTracker struct {
	mu       sync.Mutex
	progress Progress
	every    int
	fn       ProgressFunc
}

func newProgressTracker(total, every int, fn ProgressFunc) *progressTracker {
	return &progressTracker{
		progress: Progress{Total: total},
		every:    every,
		fn:       fn,
	}
}

func (t *progressTracker) complete(status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress.Done++
	switch status {
	case StatusFallback:
		t.progress.Fallbacks++
	case StatusFailed:
		t.progress.Failures++
	}

	if t.fn == nil {
		return
	}
	if t.progress.Done%t.every == 0 || t.progress.Done == t.progress.Total {
		t.fn(t.progress)
	}
}

func (t *progressTracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}
