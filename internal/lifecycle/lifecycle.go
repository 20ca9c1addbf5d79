// ABOUTME: Lifecycle coordinator owning start/stop sequencing and connection event handling
// ABOUTME: Sole writer of the status tracker; escalates fatal transport faults to a shutdown request

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/coven-bot/internal/command"
	"github.com/2389/coven-bot/internal/gateway"
	"github.com/2389/coven-bot/internal/status"
)

// Coordinator errors
var (
	// ErrConnectFailed wraps a gateway login/connect failure.
	ErrConnectFailed = errors.New("gateway connect failed")

	// ErrReadyTimeout indicates the gateway never signalled ready within the
	// configured ceiling.
	ErrReadyTimeout = errors.New("timed out waiting for gateway ready")

	// ErrNotRunning indicates an operation that requires the running state
	// was attempted too early.
	ErrNotRunning = errors.New("coordinator is not running")
)

// TransportPolicy wraps a gateway transport call in retry and
// circuit-breaking behavior. Implementations are injected so tests can
// substitute deterministic no-op policies.
type TransportPolicy interface {
	Execute(ctx context.Context, name string, op func(ctx context.Context) error) error
}

// Config wires a Coordinator.
type Config struct {
	Tracker   *status.Tracker
	Session   gateway.Session
	Registrar gateway.CommandRegistrar
	Registry  *command.Registry
	Target    command.Target
	Events    <-chan gateway.ConnectionEvent
	Policy    TransportPolicy

	// RequestShutdown escalates a fatal fault to the hosting layer. Called
	// at most once for the coordinator's lifetime.
	RequestShutdown func(reason string)

	// ReadyTimeout is the hard ceiling on waiting for the ready signal.
	ReadyTimeout time.Duration

	// DisconnectGrace is how long an unexpected disconnect while running is
	// tolerated before it is declared fatal. Zero means immediately fatal.
	DisconnectGrace time.Duration

	Logger *slog.Logger
}

// Coordinator drives the lifecycle state machine. It is the only component
// that calls Transition on the status tracker and the only one that issues
// connect/disconnect calls on the shared gateway session.
type Coordinator struct {
	tracker         *status.Tracker
	session         gateway.Session
	registrar       gateway.CommandRegistrar
	registry        *command.Registry
	target          command.Target
	events          <-chan gateway.ConnectionEvent
	policy          TransportPolicy
	requestShutdown func(reason string)
	readyTimeout    time.Duration
	disconnectGrace time.Duration
	logger          *slog.Logger

	readyOnce    sync.Once
	ready        chan struct{}
	shutdownOnce sync.Once

	mu         sync.Mutex
	graceTimer *time.Timer
}

// New creates a Coordinator from cfg.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		tracker:         cfg.Tracker,
		session:         cfg.Session,
		registrar:       cfg.Registrar,
		registry:        cfg.Registry,
		target:          cfg.Target,
		events:          cfg.Events,
		policy:          cfg.Policy,
		requestShutdown: cfg.RequestShutdown,
		readyTimeout:    cfg.ReadyTimeout,
		disconnectGrace: cfg.DisconnectGrace,
		logger:          cfg.Logger,
		ready:           make(chan struct{}),
	}
}

// Start transitions to starting and opens the gateway session under the
// transport policy. A Start while not stopped is a no-op with a warning; no
// duplicate login is issued. On connect failure the tracker moves to error
// and the wrapped cause is returned.
func (c *Coordinator) Start(ctx context.Context) error {
	if current := c.tracker.Current(); current != status.StateStopped {
		c.logger.Warn("start ignored: coordinator not stopped", "state", current.String())
		return nil
	}

	if err := c.tracker.Transition(status.StateStarting, "connecting to gateway", nil); err != nil {
		return err
	}

	if err := c.policy.Execute(ctx, "connect", c.session.Open); err != nil {
		_ = c.tracker.Transition(status.StateError, "gateway connect failed", err)
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	c.logger.Info("gateway session opened, waiting for ready signal")
	return nil
}

// Stop transitions to stopping and closes the gateway session. A Stop while
// already stopped or stopping is a no-op with a warning.
func (c *Coordinator) Stop(ctx context.Context) error {
	current := c.tracker.Current()
	if current == status.StateStopped || current == status.StateStopping {
		c.logger.Warn("stop ignored: coordinator already stopped or stopping", "state", current.String())
		return nil
	}

	// Stopping is only reachable from running; after a startup failure or a
	// fatal fault the session is closed and the tracker goes directly to
	// stopped, which is valid from any state.
	if current == status.StateRunning {
		if err := c.tracker.Transition(status.StateStopping, "disconnecting from gateway", nil); err != nil {
			return err
		}
	}

	c.cancelGraceTimer()

	if err := c.session.Close(ctx); err != nil {
		_ = c.tracker.Transition(status.StateError, "gateway disconnect failed", err)
		return fmt.Errorf("closing gateway session: %w", err)
	}

	return c.tracker.Transition(status.StateStopped, "shutdown complete", nil)
}

// WaitUntilReady blocks until the gateway signals ready and the tracker
// reaches running, bounded by the configured ready timeout. On timeout the
// tracker moves to error, a shutdown is requested, and ErrReadyTimeout is
// returned.
func (c *Coordinator) WaitUntilReady(ctx context.Context) error {
	timer := time.NewTimer(c.readyTimeout)
	defer timer.Stop()

	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		err := fmt.Errorf("%w after %s", ErrReadyTimeout, c.readyTimeout)
		_ = c.tracker.Transition(status.StateError, "gateway never became ready", err)
		c.escalate("ready timeout")
		return err
	}
}

// RegisterCommands pushes the sealed command set to the platform under the
// transport policy. Must not be called before the tracker reaches running.
func (c *Coordinator) RegisterCommands(ctx context.Context) error {
	if current := c.tracker.Current(); current != status.StateRunning {
		return fmt.Errorf("%w: state is %s", ErrNotRunning, current)
	}

	return c.policy.Execute(ctx, "register-commands", func(ctx context.Context) error {
		return c.registry.PushToPlatform(ctx, c.registrar, c.target)
	})
}

// Run consumes connection events until ctx is canceled or the event channel
// closes.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.handleConnectionEvent(ev)
		}
	}
}

func (c *Coordinator) handleConnectionEvent(ev gateway.ConnectionEvent) {
	c.logger.Debug("connection event", "state", ev.State.String(), "error", ev.Err)

	switch ev.State {
	case gateway.ConnReady:
		c.handleReady()
	case gateway.ConnConnected:
		// A reconnect within the grace window clears the pending fault.
		c.cancelGraceTimer()
	case gateway.ConnDisconnected:
		c.handleDisconnected(ev)
	}
}

func (c *Coordinator) handleReady() {
	c.cancelGraceTimer()

	if c.tracker.Current() != status.StateStarting {
		return
	}
	if err := c.tracker.Transition(status.StateRunning, "gateway ready", nil); err != nil {
		c.logger.Warn("ready signal raced with another transition", "error", err)
		return
	}
	c.readyOnce.Do(func() { close(c.ready) })
}

// handleDisconnected treats an unexpected disconnect while running as a
// fault. With a non-zero grace period the fault is deferred: if the gateway
// reconnects before the grace timer fires, the drop is tolerated and logged.
func (c *Coordinator) handleDisconnected(ev gateway.ConnectionEvent) {
	if c.tracker.Current() != status.StateRunning {
		return
	}

	if c.disconnectGrace <= 0 {
		c.fatal("gateway disconnected while running", ev.Err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.graceTimer != nil {
		return
	}
	c.logger.Warn("gateway disconnected, waiting for reconnect",
		"grace", c.disconnectGrace,
		"error", ev.Err,
	)
	c.graceTimer = time.AfterFunc(c.disconnectGrace, func() {
		c.mu.Lock()
		c.graceTimer = nil
		c.mu.Unlock()

		if c.tracker.Current() != status.StateRunning {
			return
		}
		c.fatal("gateway did not reconnect within grace period", ev.Err)
	})
}

func (c *Coordinator) cancelGraceTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
		c.logger.Info("gateway reconnected within grace period")
	}
}

func (c *Coordinator) fatal(message string, cause error) {
	_ = c.tracker.Transition(status.StateError, message, cause)
	c.escalate(message)
}

// escalate requests a hosting-level shutdown exactly once.
func (c *Coordinator) escalate(reason string) {
	c.shutdownOnce.Do(func() {
		c.logger.Error("requesting shutdown", "reason", reason)
		if c.requestShutdown != nil {
			c.requestShutdown(reason)
		}
	})
}
