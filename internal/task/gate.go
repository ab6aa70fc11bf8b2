package task

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of simultaneously held slots. Any released slot can
// be acquired by any waiter; there is no fixed set of worker goroutines.
type Gate struct {
	sem  *semaphore.Weighted
	size int
	held atomic.Int64
}

// NewGate returns a gate with n slots. n below 1 is treated as 1.
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{
		sem:  semaphore.NewWeighted(int64(n)),
		size: n,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) (*Slot, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	g.held.Add(1)
	return &Slot{gate: g}, nil
}

// Size returns the number of slots.
func (g *Gate) Size() int {
	return g.size
}

// Held returns the number of slots currently held.
func (g *Gate) Held() int {
	return int(g.held.Load())
}

// Slot is one unit of gate capacity. Release is idempotent.
type Slot struct {
	gate     *Gate
	once     sync.Once
	detached atomic.Bool
}

// Release returns the slot to its gate. Only the first call has an effect.
func (s *Slot) Release() {
	s.once.Do(func() {
		s.gate.held.Add(-1)
		s.gate.sem.Release(1)
	})
}

// Detach marks the slot as owned by someone other than the orchestrator, which
// then leaves releasing it to the new owner.
func (s *Slot) Detach() {
	s.detached.Store(true)
}

// Detached reports whether Detach was called.
func (s *Slot) Detached() bool {
	return s.detached.Load()
}
