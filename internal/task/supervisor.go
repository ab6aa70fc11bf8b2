package task

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDetachGrace is how long a timed-out operation may run detached before
// the supervisor warns about it.
const DefaultDetachGrace = 30 * time.Second

// Supervisor owns operations that outlived their deadline. It releases the
// gate slot of each one only when the operation returns, so the gate never
// admits more operations than it has slots. An operation still running after
// the grace period is reported as stuck.
type Supervisor struct {
	grace  time.Duration
	logger *slog.Logger

	wg       sync.WaitGroup
	detached atomic.Int64
	stuck    atomic.Int64
}

// NewSupervisor returns a supervisor with the given grace period. A grace of
// zero or less disables the stuck-operation warning.
func NewSupervisor(grace time.Duration, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		grace:  grace,
		logger: logger.With("component", "task_supervisor"),
	}
}

// Track takes ownership of slot until finished is closed.
func (s *Supervisor) Track(key string, slot *Slot, finished <-chan struct{}) {
	s.detached.Add(1)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer s.detached.Add(-1)

		start := time.Now()
		var graceC <-chan time.Time
		if s.grace > 0 {
			timer := time.NewTimer(s.grace)
			defer timer.Stop()
			graceC = timer.C
		}

		select {
		case <-finished:
			slot.Release()
			s.logger.Debug("detached operation finished",
				"item_key", key,
				"after", time.Since(start))
			return
		case <-graceC:
			s.stuck.Add(1)
			s.logger.Warn("detached operation exceeded grace period, still holding its slot",
				"item_key", key,
				"grace", s.grace)
		}

		<-finished
		s.stuck.Add(-1)
		slot.Release()
		s.logger.Info("detached operation finished after grace period",
			"item_key", key,
			"after", time.Since(start))
	}()
}

// Detached returns the number of operations still running detached.
func (s *Supervisor) Detached() int {
	return int(s.detached.Load())
}

// Stuck returns the number of detached operations running past the grace
// period.
func (s *Supervisor) Stuck() int {
	return int(s.stuck.Load())
}

// Wait blocks until every tracked operation has returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("abandoning detached operations", "count", s.Detached())
		return ctx.Err()
	}
}
