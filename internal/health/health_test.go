// ABOUTME: Tests for health reporters covering state mapping and memory thresholds.
// ABOUTME: Includes the collaborator-unavailable paths that must not propagate faults.

package health

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-bot/internal/gateway"
	"github.com/2389/coven-bot/internal/status"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSession serves canned connection state and latency.
type fakeSession struct {
	state   gateway.ConnState
	latency time.Duration
	panics  bool
}

func (f *fakeSession) Open(ctx context.Context) error  { return nil }
func (f *fakeSession) Close(ctx context.Context) error { return nil }
func (f *fakeSession) GuildCount() int                 { return 1 }
func (f *fakeSession) UserCount() int                  { return 10 }

func (f *fakeSession) State() gateway.ConnState {
	if f.panics {
		panic("session torn down")
	}
	return f.state
}

func (f *fakeSession) Latency() time.Duration { return f.latency }

func TestBotReporter_StateMapping(t *testing.T) {
	tests := []struct {
		state status.State
		want  Status
	}{
		{status.StateRunning, StatusHealthy},
		{status.StateStarting, StatusDegraded},
		{status.StateStopping, StatusDegraded},
		{status.StateStopped, StatusUnhealthy},
		{status.StateError, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			tracker := status.NewTracker(testLogger())
			// Walk the tracker into the desired state via valid transitions.
			switch tt.state {
			case status.StateStarting:
				require.NoError(t, tracker.Transition(status.StateStarting, "", nil))
			case status.StateRunning:
				require.NoError(t, tracker.Transition(status.StateStarting, "", nil))
				require.NoError(t, tracker.Transition(status.StateRunning, "", nil))
			case status.StateStopping:
				require.NoError(t, tracker.Transition(status.StateStarting, "", nil))
				require.NoError(t, tracker.Transition(status.StateRunning, "", nil))
				require.NoError(t, tracker.Transition(status.StateStopping, "", nil))
			case status.StateError:
				require.NoError(t, tracker.Transition(status.StateError, "", nil))
			}

			report := NewBotReporter(tracker).Check(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Equal(t, tt.state.String(), report.Details["state"])
		})
	}
}

func TestConnectionReporter_Healthy(t *testing.T) {
	r := NewConnectionReporter(&fakeSession{state: gateway.ConnReady, latency: 50 * time.Millisecond}, time.Second)

	report := r.Check(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, int64(50), report.Details["latency_ms"])
}

func TestConnectionReporter_HighLatencyDegraded(t *testing.T) {
	r := NewConnectionReporter(&fakeSession{state: gateway.ConnConnected, latency: 1500 * time.Millisecond}, time.Second)

	report := r.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Contains(t, report.Reason, "latency")
}

func TestConnectionReporter_DisconnectedUnhealthy(t *testing.T) {
	r := NewConnectionReporter(&fakeSession{state: gateway.ConnDisconnected}, time.Second)

	report := r.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Contains(t, report.Reason, "disconnected")
}

func TestConnectionReporter_NilSession(t *testing.T) {
	r := NewConnectionReporter(nil, time.Second)

	report := r.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.NotEmpty(t, report.Reason)
}

func TestConnectionReporter_PanickingSession(t *testing.T) {
	r := NewConnectionReporter(&fakeSession{panics: true}, time.Second)

	report := r.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Contains(t, report.Reason, "unavailable")
}

func TestMemoryReporter_Thresholds(t *testing.T) {
	const mb = 1024 * 1024
	tests := []struct {
		name   string
		usedMB uint64
		want   Status
	}{
		{"well below threshold", 100, StatusHealthy},
		{"just under 80 percent", 400, StatusHealthy},
		{"above 80 percent", 450, StatusDegraded},
		{"above threshold", 600, StatusUnhealthy},
		{"exactly at threshold", 512, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewMemoryReporter(512)
			r.usage = func() uint64 { return tt.usedMB * mb }

			report := r.Check(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Equal(t, tt.usedMB, report.Details["used_mb"].(uint64))
		})
	}
}

func TestMemoryReporter_LiveRead(t *testing.T) {
	r := NewMemoryReporter(10000)
	report := r.Check(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
}

func TestWorst(t *testing.T) {
	assert.Equal(t, StatusUnhealthy, Worst(StatusHealthy, StatusUnhealthy))
	assert.Equal(t, StatusDegraded, Worst(StatusDegraded, StatusHealthy))
	assert.Equal(t, StatusHealthy, Worst(StatusHealthy, StatusHealthy))
}
