package task

import (
	"context"
	"time"
)

// Item is a unit of work with a stable, unique identity. The key orders the
// orchestrator's bookkeeping and doubles as the idempotency key of the item.
type Item interface {
	Key() string
}

// Status classifies the outcome of one item.
type Status int

const (
	// StatusSuccess means the operation completed and Value holds its result.
	StatusSuccess Status = iota + 1

	// StatusFallback means the operation missed its deadline and Value holds a
	// conservative substitute. Err explains why.
	StatusFallback

	// StatusFailed means the item produced no usable value. Err holds the cause.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFallback:
		return "fallback"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome for the item at Index of the input batch.
type Result[R any] struct {
	Index    int
	Key      string
	Status   Status
	Value    R
	Err      error
	Duration time.Duration
}

// Usable reports whether Value can be acted upon, which is the case for both
// successful and fallback results.
func (r Result[R]) Usable() bool {
	return r.Status == StatusSuccess || r.Status == StatusFallback
}

// Operation performs the remote call for one item.
type Operation[I Item, R any] func(ctx context.Context, item I) (R, error)

// Worker turns one item into a Result while holding a gate slot. A worker that
// detaches the slot takes over responsibility for releasing it.
type Worker[I Item, R any] func(ctx context.Context, item I, slot *Slot) Result[R]

// Simple adapts an Operation into a Worker that runs it inline.
func Simple[I Item, R any](op Operation[I, R]) Worker[I, R] {
	return func(ctx context.Context, item I, _ *Slot) Result[R] {
		v, err := op(ctx, item)
		if err != nil {
			return Result[R]{Status: StatusFailed, Err: err}
		}
		return Result[R]{Status: StatusSuccess, Value: v}
	}
}

// Progress is reported while a batch runs.
type Progress struct {
	Done      int
	Total     int
	Fallbacks int
	Failures  int
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)
