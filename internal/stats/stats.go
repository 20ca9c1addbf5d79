// ABOUTME: Thread-safe per-command and aggregate statistics for dispatched interactions
// ABOUTME: Counters are owned here exclusively; everything else reads copied snapshots

package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Outcome classifies one completed dispatch.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeTimeout
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the collected statistics. The
// PerCommand map is owned by the caller; mutating it does not affect the
// collector.
type Snapshot struct {
	// Executed counts successful dispatches across all commands.
	Executed uint64

	// Failed counts dispatches that ended in a domain failure or fault.
	Failed uint64

	// TimedOut counts dispatches cancelled by the command deadline.
	TimedOut uint64

	// PerCommand maps command name to successful invocation count.
	PerCommand map[string]uint64

	// StartedAt is when the collector was created.
	StartedAt time.Time
}

// Collector accumulates dispatch outcomes. Record methods are safe to call
// from any number of concurrent dispatch goroutines; the aggregate counters
// use atomic increments and the per-command map a single mutex.
type Collector struct {
	executed atomic.Uint64
	failed   atomic.Uint64
	timedOut atomic.Uint64

	mu         sync.Mutex
	perCommand map[string]uint64

	startedAt time.Time
}

// NewCollector creates an empty Collector with StartedAt set to now.
func NewCollector() *Collector {
	return &Collector{
		perCommand: make(map[string]uint64),
		startedAt:  time.Now(),
	}
}

// Record registers one completed dispatch. Only successful dispatches count
// toward the aggregate executed counter and the per-command map; failures
// and timeouts are tallied separately.
func (c *Collector) Record(cmd string, outcome Outcome, elapsed time.Duration) {
	switch outcome {
	case OutcomeSuccess:
		c.executed.Add(1)
		c.mu.Lock()
		c.perCommand[cmd]++
		c.mu.Unlock()
	case OutcomeFailure:
		c.failed.Add(1)
	case OutcomeTimeout:
		c.timedOut.Add(1)
	}
}

// Executed returns the aggregate count of successful dispatches.
func (c *Collector) Executed() uint64 {
	return c.executed.Load()
}

// Uptime returns the time elapsed since the collector was created,
// computed on read.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startedAt)
}

// Snapshot returns a copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	perCommand := make(map[string]uint64, len(c.perCommand))
	for name, n := range c.perCommand {
		perCommand[name] = n
	}
	c.mu.Unlock()

	return Snapshot{
		Executed:   c.executed.Load(),
		Failed:     c.failed.Load(),
		TimedOut:   c.timedOut.Load(),
		PerCommand: perCommand,
		StartedAt:  c.startedAt,
	}
}
