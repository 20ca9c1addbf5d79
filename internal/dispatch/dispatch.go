// ABOUTME: Interaction dispatcher running the admission, lookup, execute, record pipeline
// ABOUTME: Per-command deadlines cancel only the handler; bookkeeping always runs to completion

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-bot/internal/command"
	"github.com/2389/coven-bot/internal/gate"
	"github.com/2389/coven-bot/internal/gateway"
	"github.com/2389/coven-bot/internal/stats"
)

// User-facing messages, fixed per error kind. All are sent ephemeral.
const (
	msgOverloaded   = "The bot is handling too many commands right now. Try again shortly."
	msgUnknown      = "That command is not recognized."
	msgPrecondition = "You don't have permission to do that."
	msgBadArguments = "Invalid input. Check the command arguments and try again."
	msgFault        = "Something went wrong. The error has been logged."
	msgTimeout      = "That took too long. Try again."
)

// responseTimeout bounds error-reply emission. Replies use a fresh context
// so a fired command deadline cannot cancel the dispatcher's own bookkeeping.
const responseTimeout = 5 * time.Second

// Config wires a Dispatcher.
type Config struct {
	Registry *command.Registry
	Gate     *gate.Gate
	Stats    *stats.Collector
	Events   <-chan gateway.InteractionEvent

	// CommandTimeout is the per-command execution deadline.
	CommandTimeout time.Duration

	Logger *slog.Logger
}

// Dispatcher consumes inbound interaction events and runs each through the
// dispatch pipeline: admission, handler lookup, execution under a deadline,
// outcome recording, and response emission.
type Dispatcher struct {
	registry *command.Registry
	gate     *gate.Gate
	stats    *stats.Collector
	events   <-chan gateway.InteractionEvent
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates a Dispatcher from cfg.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		registry: cfg.Registry,
		gate:     cfg.Gate,
		stats:    cfg.Stats,
		events:   cfg.Events,
		timeout:  cfg.CommandTimeout,
		logger:   cfg.Logger,
	}
}

// Run consumes interaction events until ctx is canceled or the event channel
// closes, then waits for in-flight dispatches to finish their bookkeeping.
// Each event is dispatched on its own goroutine; the gate, not a worker
// count, bounds concurrent handler executions.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping", "reason", ctx.Err())
			return
		case ev, ok := <-d.events:
			if !ok {
				d.logger.Info("interaction channel closed, dispatcher stopping")
				return
			}
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.dispatch(ctx, ev)
			}()
		}
	}
}

// dispatch runs the pipeline for one interaction.
func (d *Dispatcher) dispatch(ctx context.Context, ev gateway.InteractionEvent) {
	req := &command.Request{
		RequestID:   uuid.New().String(),
		Command:     ev.Command,
		UserID:      ev.UserID,
		GuildID:     ev.GuildID,
		Interaction: ev.Interaction,
		Options:     ev.Options,
	}
	logger := d.logger.With(
		"request_id", req.RequestID,
		"command", req.Command,
		"user_id", req.UserID,
	)
	started := time.Now()

	// Step 1: admission. A rejected request is never dispatched and never
	// counted in statistics.
	permit, err := d.gate.Acquire(ctx)
	if err != nil {
		if errors.Is(err, gate.ErrRejected) {
			logger.Warn("admission rejected", "elapsed", time.Since(started))
			d.reply(ev.Interaction, msgOverloaded, logger)
		}
		return
	}
	defer permit.Release()

	// Step 2: handler lookup. An unknown command leaves no statistics entry.
	handler, err := d.registry.Resolve(req.Command)
	if err != nil {
		logger.Warn("unknown command", "elapsed", time.Since(started))
		d.reply(ev.Interaction, msgUnknown, logger)
		return
	}

	// Steps 3-4: execute under the command deadline, then classify.
	outcome, execErr := d.execute(ctx, handler, req)
	elapsed := time.Since(started)

	switch outcome {
	case stats.OutcomeSuccess:
		logger.Debug("command succeeded", "elapsed", elapsed)
	case stats.OutcomeTimeout:
		logger.Error("command timed out", "elapsed", elapsed, "timeout", d.timeout)
		d.reply(ev.Interaction, msgTimeout, logger)
	case stats.OutcomeFailure:
		logger.Error("command failed", "error", execErr, "elapsed", elapsed)
		d.reply(ev.Interaction, failureMessage(execErr), logger)
	}

	// Steps 5-6 happen regardless of branch: the deferred permit release and
	// the statistics update below.
	d.stats.Record(req.Command, outcome, elapsed)
}

// execute runs the handler with a deadline derived from the configured
// command timeout. The deadline cancels only the handler's context; when it
// fires the handler goroutine is abandoned and the dispatch is recorded as a
// timeout. Panics inside the handler are recovered and treated as faults.
func (d *Dispatcher) execute(ctx context.Context, handler command.Handler, req *command.Request) (stats.Outcome, error) {
	execCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("handler panic: %v", r)
			}
		}()
		done <- handler.Execute(execCtx, req)
	}()

	select {
	case err := <-done:
		return classify(err), err
	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return stats.OutcomeTimeout, execCtx.Err()
		}
		// Parent context canceled (shutdown). Give the handler a moment to
		// observe cancellation so its outcome is still recorded.
		select {
		case err := <-done:
			return classify(err), err
		case <-time.After(responseTimeout):
			return stats.OutcomeFailure, execCtx.Err()
		}
	}
}

// classify maps a handler return value to an outcome.
func classify(err error) stats.Outcome {
	switch {
	case err == nil:
		return stats.OutcomeSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return stats.OutcomeTimeout
	default:
		return stats.OutcomeFailure
	}
}

// failureMessage maps a handler failure to its fixed user-facing message.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, command.ErrPrecondition):
		return msgPrecondition
	case errors.Is(err, command.ErrBadArguments):
		return msgBadArguments
	default:
		return msgFault
	}
}

// reply emits an ephemeral message through the originating interaction
// handle. If the immediate response fails (e.g. the handler already deferred
// or responded), a followup is attempted before giving up.
func (d *Dispatcher) reply(in gateway.Interaction, content string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), responseTimeout)
	defer cancel()

	resp := gateway.Response{Content: content, Ephemeral: true}
	if err := in.Respond(ctx, resp); err != nil {
		if err := in.Followup(ctx, resp); err != nil {
			logger.Error("emitting error reply", "error", err)
		}
	}
}
