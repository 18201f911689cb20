// Package limit provides shared concurrency bounds for coordinator work.
package limit

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent deliverable validator executions using a weighted
// semaphore. All validator invocations across concurrent validation calls
// go through a shared Pool so that slow validators cannot exhaust the
// process; validators within a single call still run in contract order.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// NewPool creates a Pool with the given number of slots, at least one.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit)), size: int64(limit)}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	if p == nil {
		return 0
	}
	return int(p.size)
}

// Run executes fn while holding a slot, blocking while all slots are busy.
// A context cancelled before or during the wait returns ctx.Err() without
// running fn. The semaphore's fast path would otherwise admit work on an
// already-dead context, so that is checked explicitly. A nil Pool runs fn
// directly.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if p == nil || p.sem == nil {
		return fn()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
