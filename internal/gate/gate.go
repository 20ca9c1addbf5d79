// ABOUTME: Bounded admission control for in-flight command executions
// ABOUTME: Fails fast under sustained overload instead of queueing an unbounded backlog

package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrRejected indicates no permit became available within the wait window.
// The caller surfaces this as an "overloaded" signal to the user rather than
// queueing the request indefinitely.
var ErrRejected = errors.New("admission rejected: gate saturated")

// Gate bounds the number of commands executing concurrently across all
// command names combined. It is a global backpressure valve, not a
// per-command rate limit.
type Gate struct {
	sem      *semaphore.Weighted
	wait     time.Duration
	inFlight atomic.Int64
}

// New creates a Gate with the given capacity. Acquire waits up to wait for
// a free permit before rejecting.
func New(capacity int, wait time.Duration) *Gate {
	return &Gate{
		sem:  semaphore.NewWeighted(int64(capacity)),
		wait: wait,
	}
}

// Permit is one unit of admission capacity. Release must be called on every
// exit path; callers defer it immediately after a successful Acquire.
// Release is idempotent.
type Permit struct {
	release sync.Once
	gate    *Gate
}

// Release returns the permit to the gate.
func (p *Permit) Release() {
	p.release.Do(func() {
		p.gate.inFlight.Add(-1)
		p.gate.sem.Release(1)
	})
}

// Acquire blocks up to the configured wait for a free permit. Returns
// ErrRejected when the gate stays saturated for the whole window, or the
// ctx error if ctx is done first.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.wait)
	defer cancel()

	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrRejected
	}

	g.inFlight.Add(1)
	return &Permit{gate: g}, nil
}

// InFlight reports the number of permits currently held.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}
