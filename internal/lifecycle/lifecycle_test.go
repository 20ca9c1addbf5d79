// ABOUTME: Tests for the lifecycle coordinator covering start/stop idempotence and disconnects.
// ABOUTME: Uses fake sessions and a pass-through policy to keep transitions deterministic.

package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-bot/internal/command"
	"github.com/2389/coven-bot/internal/gateway"
	"github.com/2389/coven-bot/internal/status"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSession counts open/close calls and returns injected errors.
type fakeSession struct {
	openCalls  atomic.Int32
	closeCalls atomic.Int32
	openErr    error
	closeErr   error
}

func (f *fakeSession) Open(ctx context.Context) error {
	f.openCalls.Add(1)
	return f.openErr
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.closeCalls.Add(1)
	return f.closeErr
}

func (f *fakeSession) State() gateway.ConnState { return gateway.ConnConnected }
func (f *fakeSession) Latency() time.Duration   { return 42 * time.Millisecond }
func (f *fakeSession) GuildCount() int        { return 3 }
func (f *fakeSession) UserCount() int         { return 100 }

// passthroughPolicy executes the operation exactly once, no retry.
type passthroughPolicy struct {
	calls atomic.Int32
}

func (p *passthroughPolicy) Execute(ctx context.Context, name string, op func(ctx context.Context) error) error {
	p.calls.Add(1)
	return op(ctx)
}

type fakeRegistrar struct {
	globalCalls atomic.Int32
	guildCalls  atomic.Int32
}

func (f *fakeRegistrar) OverwriteGlobalCommands(ctx context.Context, commands []gateway.CommandDefinition) error {
	f.globalCalls.Add(1)
	return nil
}

func (f *fakeRegistrar) OverwriteGuildCommands(ctx context.Context, guildID string, commands []gateway.CommandDefinition) error {
	f.guildCalls.Add(1)
	return nil
}

type fixture struct {
	coordinator *Coordinator
	tracker     *status.Tracker
	session     *fakeSession
	registrar   *fakeRegistrar
	events      chan gateway.ConnectionEvent
	shutdowns   *atomic.Int32
	cancel      context.CancelFunc
}

func newFixture(t *testing.T, grace time.Duration) *fixture {
	t.Helper()

	tracker := status.NewTracker(testLogger())
	session := &fakeSession{}
	registrar := &fakeRegistrar{}
	events := make(chan gateway.ConnectionEvent, 16)
	var shutdowns atomic.Int32

	registry := command.NewRegistry(testLogger())
	require.NoError(t, registry.Register("ping", command.HandlerFunc(func(ctx context.Context, req *command.Request) error {
		return nil
	}), command.Metadata{}))

	c := New(Config{
		Tracker:         tracker,
		Session:         session,
		Registrar:       registrar,
		Registry:        registry,
		Target:          command.GlobalTarget(),
		Events:          events,
		Policy:          &passthroughPolicy{},
		RequestShutdown: func(string) { shutdowns.Add(1) },
		ReadyTimeout:    time.Second,
		DisconnectGrace: grace,
		Logger:          testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(cancel)

	return &fixture{
		coordinator: c,
		tracker:     tracker,
		session:     session,
		registrar:   registrar,
		events:      events,
		shutdowns:   &shutdowns,
		cancel:      cancel,
	}
}

func waitForState(t *testing.T, tracker *status.Tracker, want status.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tracker.Current() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, want, tracker.Current())
}

func TestCoordinator_StartReachesRunning(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.coordinator.Start(context.Background()))
	assert.Equal(t, status.StateStarting, f.tracker.Current())
	assert.Equal(t, int32(1), f.session.openCalls.Load())

	f.events <- gateway.ConnectionEvent{State: gateway.ConnReady, At: time.Now()}

	require.NoError(t, f.coordinator.WaitUntilReady(context.Background()))
	assert.Equal(t, status.StateRunning, f.tracker.Current())
}

func TestCoordinator_StartIdempotentWhenRunning(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.coordinator.Start(context.Background()))
	f.events <- gateway.ConnectionEvent{State: gateway.ConnReady}
	require.NoError(t, f.coordinator.WaitUntilReady(context.Background()))

	// Second start is a no-op: state unchanged, no duplicate login.
	require.NoError(t, f.coordinator.Start(context.Background()))
	assert.Equal(t, status.StateRunning, f.tracker.Current())
	assert.Equal(t, int32(1), f.session.openCalls.Load())
}

func TestCoordinator_StartConnectFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.session.openErr = errors.New("dial tcp: refused")

	err := f.coordinator.Start(context.Background())
	require.ErrorIs(t, err, ErrConnectFailed)
	assert.Equal(t, status.StateError, f.tracker.Current())
}

func TestCoordinator_StopIdempotentWhenStopped(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.coordinator.Stop(context.Background()))
	assert.Equal(t, status.StateStopped, f.tracker.Current())
	assert.Zero(t, f.session.closeCalls.Load())
}

func TestCoordinator_StopFromRunning(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.coordinator.Start(context.Background()))
	f.events <- gateway.ConnectionEvent{State: gateway.ConnReady}
	require.NoError(t, f.coordinator.WaitUntilReady(context.Background()))

	require.NoError(t, f.coordinator.Stop(context.Background()))
	assert.Equal(t, status.StateStopped, f.tracker.Current())
	assert.Equal(t, int32(1), f.session.closeCalls.Load())
}

func TestCoordinator_StopCloseFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.session.closeErr = errors.New("already closed")

	require.NoError(t, f.coordinator.Start(context.Background()))
	f.events <- gateway.ConnectionEvent{State: gateway.ConnReady}
	require.NoError(t, f.coordinator.WaitUntilReady(context.Background()))

	err := f.coordinator.Stop(context.Background())
	require.Error(t, err)
	assert.Equal(t, status.StateError, f.tracker.Current())
}

func TestCoordinator_StopAfterFatalFault(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.coordinator.Start(context.Background()))
	f.events <- gateway.ConnectionEvent{State: gateway.ConnReady}
	require.NoError(t, f.coordinator.WaitUntilReady(context.Background()))

	f.events <- gateway.ConnectionEvent{State: gateway.ConnDisconnected, Err: errors.New("ws closed")}
	waitForState(t, f.tracker, status.StateError)

	// The hosting layer still calls Stop on its way down; the session must
	// be closed and the tracker must settle at stopped.
	require.NoError(t, f.coordinator.Stop(context.Background()))
	assert.Equal(t, status.StateStopped, f.tracker.Current())
	assert.Equal(t, int32(1), f.session.closeCalls.Load())
}

func TestCoordinator_DisconnectWhileRunningIsFatal(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.coordinator.Start(context.Background()))
	f.events <- gateway.ConnectionEvent{State: gateway.ConnReady}
	require.NoError(t, f.coordinator.WaitUntilReady(context.Background()))

	f.events <- gateway.ConnectionEvent{State: gateway.ConnDisconnected, Err: errors.New("ws closed")}
	waitForState(t, f.tracker, status.StateError)

	// A second disconnect must not trigger a second shutdown request.
	f.events <- gateway.ConnectionEvent{State: gateway.ConnDisconnected}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), f.shutdowns.Load())
}

func TestCoordinator_DisconnectBeforeRunningIgnored(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.coordinator.Start(context.Background()))
	f.events <- gateway.ConnectionEvent{State: gateway.ConnDisconnected}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, status.StateStarting, f.tracker.Current())
	assert.Zero(t, f.shutdowns.Load())
}

func TestCoordinator_ReconnectWithinGraceTolerated(t *testing.T) {
	f := newFixture(t, 500*time.Millisecond)

	require.NoError(t, f.coordinator.Start(context.Background()))
	f.events <- gateway.ConnectionEvent{State: gateway.ConnReady}
	require.NoError(t, f.coordinator.WaitUntilReady(context.Background()))

	f.events <- gateway.ConnectionEvent{State: gateway.ConnDisconnected, Err: errors.New("blip")}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, status.StateRunning, f.tracker.Current(), "disconnect inside grace must not be fatal yet")

	f.events <- gateway.ConnectionEvent{State: gateway.ConnConnected}
	time.Sleep(600 * time.Millisecond)

	assert.Equal(t, status.StateRunning, f.tracker.Current())
	assert.Zero(t, f.shutdowns.Load())
}

func TestCoordinator_GraceExpiryIsFatal(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)

	require.NoError(t, f.coordinator.Start(context.Background()))
	f.events <- gateway.ConnectionEvent{State: gateway.ConnReady}
	require.NoError(t, f.coordinator.WaitUntilReady(context.Background()))

	f.events <- gateway.ConnectionEvent{State: gateway.ConnDisconnected, Err: errors.New("gone")}
	waitForState(t, f.tracker, status.StateError)
	assert.Equal(t, int32(1), f.shutdowns.Load())
}

func TestCoordinator_WaitUntilReadyTimeout(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.coordinator.Start(context.Background()))

	start := time.Now()
	err := f.coordinator.WaitUntilReady(context.Background())
	require.ErrorIs(t, err, ErrReadyTimeout)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.Equal(t, status.StateError, f.tracker.Current())
	assert.Equal(t, int32(1), f.shutdowns.Load())
}

func TestCoordinator_RegisterCommandsRequiresRunning(t *testing.T) {
	f := newFixture(t, 0)

	err := f.coordinator.RegisterCommands(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, f.coordinator.Start(context.Background()))
	f.events <- gateway.ConnectionEvent{State: gateway.ConnReady}
	require.NoError(t, f.coordinator.WaitUntilReady(context.Background()))

	require.NoError(t, f.coordinator.RegisterCommands(context.Background()))
	assert.Equal(t, int32(1), f.registrar.globalCalls.Load())
}
