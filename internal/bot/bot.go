// ABOUTME: Composition root wiring config and the platform collaborator into a running bot
// ABOUTME: Owns startup ordering, the fatal-fault escalation path, and graceful shutdown

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/coven-bot/internal/builtins"
	"github.com/2389/coven-bot/internal/command"
	"github.com/2389/coven-bot/internal/config"
	"github.com/2389/coven-bot/internal/dispatch"
	"github.com/2389/coven-bot/internal/gate"
	"github.com/2389/coven-bot/internal/gateway"
	"github.com/2389/coven-bot/internal/health"
	"github.com/2389/coven-bot/internal/lifecycle"
	"github.com/2389/coven-bot/internal/monitor"
	"github.com/2389/coven-bot/internal/policy"
	"github.com/2389/coven-bot/internal/stats"
	"github.com/2389/coven-bot/internal/status"
)

// stopTimeout bounds the graceful disconnect during shutdown.
const stopTimeout = 10 * time.Second

// Platform bundles everything the bot needs from the chat-platform
// collaborator: the session, the bulk registration surface, and the two
// event streams. The collaborator closes both channels when the session
// closes for good.
type Platform struct {
	Session      gateway.Session
	Registrar    gateway.CommandRegistrar
	Interactions <-chan gateway.InteractionEvent
	Connections  <-chan gateway.ConnectionEvent
}

// Bot is the assembled service: dispatch core, lifecycle coordinator, and
// monitor servers, wired from one Config.
type Bot struct {
	logger *slog.Logger

	tracker     *status.Tracker
	registry    *command.Registry
	stats       *stats.Collector
	dispatcher  *dispatch.Dispatcher
	coordinator *lifecycle.Coordinator
	monitor     *monitor.Monitor

	// fatal is closed by the coordinator's shutdown escalation.
	fatal     chan struct{}
	fatalOnce sync.Once
}

// New assembles a Bot from configuration and a platform collaborator. The
// command registry is sealed here: handlers register during construction
// only. Additional handlers register through the extra callback before the
// builtins are added.
func New(cfg *config.Config, platform Platform, logger *slog.Logger, extra func(*command.Registry) error) (*Bot, error) {
	tracker := status.NewTracker(logger)
	collector := stats.NewCollector()
	registry := command.NewRegistry(logger)

	if extra != nil {
		if err := extra(registry); err != nil {
			return nil, fmt.Errorf("registering commands: %w", err)
		}
	}
	if err := builtins.Register(registry, platform.Session, collector); err != nil {
		return nil, fmt.Errorf("registering built-in commands: %w", err)
	}
	registry.Seal()

	dispatcher := dispatch.New(dispatch.Config{
		Registry:       registry,
		Gate:           gate.New(cfg.Commands.MaxConcurrent, cfg.Commands.GateWait),
		Stats:          collector,
		Events:         platform.Interactions,
		CommandTimeout: cfg.Commands.Timeout,
		Logger:         logger,
	})

	b := &Bot{
		logger:     logger,
		tracker:    tracker,
		registry:   registry,
		stats:      collector,
		dispatcher: dispatcher,
		fatal:      make(chan struct{}),
	}

	transport := policy.NewTransport(policy.Config{
		MaxAttempts:      uint(cfg.Connection.Retry.MaxAttempts),
		BaseDelay:        cfg.Connection.Retry.BaseDelay,
		BreakerThreshold: uint32(cfg.Connection.Breaker.FailureThreshold),
		BreakerCooldown:  cfg.Connection.Breaker.Cooldown,
	}, logger)

	b.coordinator = lifecycle.New(lifecycle.Config{
		Tracker:         tracker,
		Session:         platform.Session,
		Registrar:       platform.Registrar,
		Registry:        registry,
		Target:          registrationTarget(cfg.Bot.Registration),
		Events:          platform.Connections,
		Policy:          transport,
		RequestShutdown: b.requestShutdown,
		ReadyTimeout:    cfg.Connection.ReadyTimeout,
		DisconnectGrace: cfg.Connection.DisconnectGrace,
		Logger:          logger,
	})

	b.monitor = monitor.New(monitor.Config{
		Server:    cfg.Server,
		Tailscale: cfg.Tailscale,
		JWTSecret: cfg.Auth.JWTSecret,
		Reporters: []health.Reporter{
			health.NewBotReporter(tracker),
			health.NewConnectionReporter(platform.Session, cfg.Connection.LatencyThreshold),
			health.NewMemoryReporter(cfg.Health.MemoryThresholdMB),
		},
		Stats:  collector,
		Logger: logger,
	})

	return b, nil
}

func registrationTarget(reg config.RegistrationConfig) command.Target {
	if reg.Mode == config.RegistrationGuild {
		return command.GuildTarget(reg.GuildID)
	}
	return command.GlobalTarget()
}

// requestShutdown is handed to the lifecycle coordinator as the fatal-fault
// escalation path. Closing fatal unblocks Run the same way ctx cancellation
// does.
func (b *Bot) requestShutdown(reason string) {
	b.fatalOnce.Do(func() {
		b.logger.Error("fatal fault, shutting down", "reason", reason)
		close(b.fatal)
	})
}

// Tracker exposes the status tracker for observers.
func (b *Bot) Tracker() *status.Tracker { return b.tracker }

// Stats exposes the statistics collector.
func (b *Bot) Stats() *stats.Collector { return b.stats }

// Run brings the bot up, serves until ctx is canceled or a fatal fault is
// escalated, then shuts everything down in order: stop consuming events,
// drain in-flight dispatches, disconnect, stop the monitor.
func (b *Bot) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	monitorErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.monitor.Run(runCtx); err != nil {
			monitorErr <- err
			b.requestShutdown("monitor server failed: " + err.Error())
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.coordinator.Run(runCtx)
	}()

	if err := b.startAndRegister(runCtx); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.dispatcher.Run(runCtx)
	}()

	b.logger.Info("bot running")

	select {
	case <-ctx.Done():
		b.logger.Info("shutdown requested")
	case <-b.fatal:
	}

	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	stopErr := b.coordinator.Stop(stopCtx)

	wg.Wait()

	select {
	case err := <-monitorErr:
		return err
	default:
	}
	return stopErr
}

// startAndRegister connects, waits for the ready signal, and pushes the
// command set to the platform.
func (b *Bot) startAndRegister(ctx context.Context) error {
	if err := b.coordinator.Start(ctx); err != nil {
		return fmt.Errorf("starting coordinator: %w", err)
	}
	if err := b.coordinator.WaitUntilReady(ctx); err != nil {
		return fmt.Errorf("waiting for ready: %w", err)
	}
	if err := b.coordinator.RegisterCommands(ctx); err != nil {
		return fmt.Errorf("registering commands with platform: %w", err)
	}
	return nil
}
