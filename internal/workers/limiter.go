package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/semaphore"
)

// Limiter bounds how many tasks run at once. Tasks submitted while all slots
// are busy start in submission order as slots free up.
type Limiter struct {
	sem    *semaphore.Weighted
	mu     sync.Mutex
	wg     *conc.WaitGroup
	limit  int
	active atomic.Int64
}

// NewLimiter creates a limiter allowing limit concurrent tasks.
// Values below 1 are treated as 1.
func NewLimiter(limit int) *Limiter {
	if limit < 1 {
		limit = 1
	}
	return &Limiter{
		sem:   semaphore.NewWeighted(int64(limit)),
		wg:    &conc.WaitGroup{},
		limit: limit,
	}
}

// Go blocks until a slot is free, then runs task in a new goroutine.
// If ctx ends first the task is not run and the context error is returned.
// The slot is released when task returns or panics.
func (l *Limiter) Go(ctx context.Context, task func()) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	l.active.Add(1)
	l.mu.Lock()
	l.wg.Go(func() {
		defer l.sem.Release(1)
		defer l.active.Add(-1)
		task()
	})
	l.mu.Unlock()
	return nil
}

// Wait blocks until every task started since the previous Wait has returned.
// A panic in one of those tasks is returned as an error instead of crashing
// the caller; later Waits do not report it again.
func (l *Limiter) Wait() error {
	l.mu.Lock()
	wg := l.wg
	l.wg = &conc.WaitGroup{}
	l.mu.Unlock()

	if r := wg.WaitAndRecover(); r != nil {
		return fmt.Errorf("limiter task panicked: %v", r.Value)
	}
	return nil
}

// Active returns the number of tasks currently running.
func (l *Limiter) Active() int {
	return int(l.active.Load())
}

// Limit returns the configured concurrency.
func (l *Limiter) Limit() int {
	return l.limit
}
