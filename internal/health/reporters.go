// ABOUTME: Bot, connection, and memory health reporters backing the monitor endpoints
// ABOUTME: Each check is a live read of the tracker, the gateway session, or process memory

package health

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/2389/coven-bot/internal/gateway"
	"github.com/2389/coven-bot/internal/status"
)

// BotReporter maps the lifecycle state to a health status: running is
// healthy, starting and stopping are degraded, stopped and error are
// unhealthy.
type BotReporter struct {
	tracker *status.Tracker
}

// NewBotReporter creates a BotReporter reading from tracker.
func NewBotReporter(tracker *status.Tracker) *BotReporter {
	return &BotReporter{tracker: tracker}
}

// Name implements Reporter.
func (r *BotReporter) Name() string { return "bot" }

// Check implements Reporter.
func (r *BotReporter) Check(ctx context.Context) Report {
	state := r.tracker.Current()

	var s Status
	switch state {
	case status.StateRunning:
		s = StatusHealthy
	case status.StateStarting, status.StateStopping:
		s = StatusDegraded
	default:
		s = StatusUnhealthy
	}

	return Report{
		Status:    s,
		Reason:    "lifecycle state is " + state.String(),
		Details:   map[string]any{"state": state.String()},
		CheckedAt: time.Now(),
	}
}

// ConnectionReporter inspects the live gateway connection state and latency.
type ConnectionReporter struct {
	session          gateway.Session
	latencyThreshold time.Duration
}

// NewConnectionReporter creates a ConnectionReporter. Latency above
// threshold reports degraded.
func NewConnectionReporter(session gateway.Session, threshold time.Duration) *ConnectionReporter {
	return &ConnectionReporter{session: session, latencyThreshold: threshold}
}

// Name implements Reporter.
func (r *ConnectionReporter) Name() string { return "connection" }

// Check implements Reporter. A nil or panicking session reports unhealthy
// rather than propagating the fault to the monitor.
func (r *ConnectionReporter) Check(ctx context.Context) (report Report) {
	defer func() {
		if rec := recover(); rec != nil {
			report = Report{
				Status:    StatusUnhealthy,
				Reason:    fmt.Sprintf("gateway session unavailable: %v", rec),
				CheckedAt: time.Now(),
			}
		}
	}()

	if r.session == nil {
		return Report{
			Status:    StatusUnhealthy,
			Reason:    "gateway session not configured",
			CheckedAt: time.Now(),
		}
	}

	state := r.session.State()
	latency := r.session.Latency()
	details := map[string]any{
		"state":      state.String(),
		"latency_ms": latency.Milliseconds(),
	}

	switch {
	case state != gateway.ConnConnected && state != gateway.ConnReady:
		return Report{
			Status:    StatusUnhealthy,
			Reason:    "gateway is " + state.String(),
			Details:   details,
			CheckedAt: time.Now(),
		}
	case latency > r.latencyThreshold:
		return Report{
			Status:    StatusDegraded,
			Reason:    fmt.Sprintf("gateway latency %s exceeds %s", latency, r.latencyThreshold),
			Details:   details,
			CheckedAt: time.Now(),
		}
	default:
		return Report{
			Status:    StatusHealthy,
			Details:   details,
			CheckedAt: time.Now(),
		}
	}
}

// MemoryReporter compares live process heap usage against a configured
// threshold: degraded at 80% of the threshold, unhealthy at 100%.
type MemoryReporter struct {
	thresholdBytes uint64
	usage          func() uint64
}

// NewMemoryReporter creates a MemoryReporter with the threshold in megabytes.
func NewMemoryReporter(thresholdMB int) *MemoryReporter {
	return &MemoryReporter{
		thresholdBytes: uint64(thresholdMB) * 1024 * 1024,
		usage: func() uint64 {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return m.HeapAlloc
		},
	}
}

// Name implements Reporter.
func (r *MemoryReporter) Name() string { return "memory" }

// Check implements Reporter.
func (r *MemoryReporter) Check(ctx context.Context) Report {
	used := r.usage()
	details := map[string]any{
		"used_mb":      used / (1024 * 1024),
		"threshold_mb": r.thresholdBytes / (1024 * 1024),
	}

	var s Status
	var reason string
	switch {
	case used >= r.thresholdBytes:
		s = StatusUnhealthy
		reason = "memory usage exceeds threshold"
	case used*10 >= r.thresholdBytes*8:
		s = StatusDegraded
		reason = "memory usage above 80% of threshold"
	default:
		s = StatusHealthy
	}

	return Report{
		Status:    s,
		Reason:    reason,
		Details:   details,
		CheckedAt: time.Now(),
	}
}
