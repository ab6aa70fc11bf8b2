package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds one guarded operation, retries included.
const DefaultTimeout = 2 * time.Minute

// FallbackFunc builds the substitute value for an item whose operation did not
// finish in time.
type FallbackFunc[I Item, R any] func(item I, cause error) R

// TimeoutGuard imposes a deadline on an operation. When the deadline passes it
// returns a StatusFallback result built by Fallback instead of an error, cancels
// the operation's context and leaves the operation to a Supervisor.
type TimeoutGuard[I Item, R any] struct {
	timeout    time.Duration
	fallback   FallbackFunc[I, R]
	supervisor *Supervisor
	logger     *slog.Logger
}

// NewTimeoutGuard returns a guard. A timeout of zero or less disables the deadline.
func NewTimeoutGuard[I Item, R any](
	timeout time.Duration,
	fallback FallbackFunc[I, R],
	supervisor *Supervisor,
	logger *slog.Logger,
) *TimeoutGuard[I, R] {
	return &TimeoutGuard[I, R]{
		timeout:    timeout,
		fallback:   fallback,
		supervisor: supervisor,
		logger:     logger.With("component", "timeout_guard"),
	}
}

type outcome[R any] struct {
	value R
	err   error
}

// Wrap returns a Worker that runs op under the guard's deadline.
func (g *TimeoutGuard[I, R]) Wrap(op Operation[I, R]) Worker[I, R] {
	return func(ctx context.Context, item I, slot *Slot) Result[R] {
		opCtx, cancel := context.WithCancel(ctx)

		done := make(chan outcome[R], 1)
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			defer func() {
				if r := recover(); r != nil {
					done <- outcome[R]{err: fmt.Errorf("%w: %v", ErrWorkerPanic, r)}
				}
			}()
			v, err := op(opCtx, item)
			done <- outcome[R]{value: v, err: err}
		}()

		var deadline <-chan time.Time
		if g.timeout > 0 {
			timer := time.NewTimer(g.timeout)
			defer timer.Stop()
			deadline = timer.C
		}

		select {
		case out := <-done:
			cancel()
			if out.err != nil {
				return Result[R]{Status: StatusFailed, Err: out.err}
			}
			return Result[R]{Status: StatusSuccess, Value: out.value}

		case <-deadline:
			cancel()
			g.detach(item, slot, finished)
			cause := fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
			g.logger.WarnContext(ctx, "operation timed out, using fallback",
				"item_key", item.Key(),
				"timeout", g.timeout)
			return Result[R]{Status: StatusFallback, Value: g.fallback(item, cause), Err: cause}

		case <-ctx.Done():
			cancel()
			g.detach(item, slot, finished)
			return Result[R]{Status: StatusFailed, Err: ctx.Err()}
		}
	}
}

// detach hands the slot of a still-running operation to the supervisor. The
// slot is released once the operation returns.
func (g *TimeoutGuard[I, R]) detach(item I, slot *Slot, finished <-chan struct{}) {
	if slot == nil {
		return
	}
	slot.Detach()
	if g.supervisor == nil {
		go func() {
			<-finished
			slot.Release()
		}()
		return
	}
	g.supervisor.Track(item.Key(), slot, finished)
}
