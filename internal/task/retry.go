package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 8
	DefaultBaseDelay   = time.Second
)

// RetryPolicy retries an operation that fails transiently.
//
// After failed attempt n (counting from 0) it waits a duration drawn uniformly
// from [2^n, 2^(n+1)) * BaseDelay. With the defaults the cumulative wait before
// giving up stays below 2^8 - 1 = 255 seconds.
type RetryPolicy struct {
	// MaxAttempts bounds the number of calls, including the first.
	MaxAttempts int

	// BaseDelay scales the backoff intervals.
	BaseDelay time.Duration

	// IsTransient selects the errors worth retrying. Defaults to
	// errors.Is(err, ErrTransient).
	IsTransient func(error) bool

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Rand returns a number in [0, 1). Defaults to a locked math/rand source.
	Rand func() float64

	// Logger receives one message per retry. May be nil.
	Logger *slog.Logger
}

// DefaultRetryPolicy returns a policy with eight attempts and one second base delay.
func DefaultRetryPolicy(logger *slog.Logger) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Logger:      logger,
	}
}

// Backoff returns the wait after failed attempt n for a uniform sample u in [0, 1).
func (p RetryPolicy) Backoff(n int, u float64) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if u < 0 {
		u = 0
	}
	if u >= 1 {
		u = 0.999999
	}
	lower := float64(base) * float64(uint64(1)<<uint(n))
	return time.Duration(lower * (1 + u))
}

// Do calls op until it succeeds, fails permanently or runs out of attempts.
// Exhaustion returns an error matching both ErrRetryExhausted and the last
// failure. Cancellation of ctx during a backoff wait returns ctx.Err().
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	isTransient := p.IsTransient
	if isTransient == nil {
		isTransient = func(err error) bool { return errors.Is(err, ErrTransient) }
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	sample := p.Rand
	if sample == nil {
		sample = defaultRand
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err

		if attempt == maxAttempts-1 {
			break
		}

		delay := p.Backoff(attempt, sample())
		if p.Logger != nil {
			p.Logger.InfoContext(ctx, "transient failure, retrying after delay",
				"attempt", attempt+1,
				"max_attempts", maxAttempts,
				"delay", delay,
				"error", err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	if p.Logger != nil {
		p.Logger.WarnContext(ctx, "maximum retry attempts reached",
			"max_attempts", maxAttempts,
			"error", lastErr)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}

// Retry wraps op with p.
func Retry[I Item, R any](p RetryPolicy, op Operation[I, R]) Operation[I, R] {
	return func(ctx context.Context, item I) (R, error) {
		var out R
		err := p.Do(ctx, func(ctx context.Context) error {
			v, err := op(ctx, item)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		return out, err
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	randMu  sync.Mutex
	randSrc = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func defaultRand() float64 {
	randMu.Lock()
	defer randMu.Unlock()
	return randSrc.Float64()
}
