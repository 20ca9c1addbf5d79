// ABOUTME: Production transport policy combining exponential-backoff retry with a circuit breaker
// ABOUTME: Wraps gateway connect and command registration calls made by the lifecycle coordinator

package policy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"
)

// Config tunes the retry and breaker behavior.
type Config struct {
	// MaxAttempts is the total number of tries per Execute call, including
	// the first.
	MaxAttempts uint

	// BaseDelay is the initial backoff interval; subsequent delays grow
	// exponentially with jitter.
	BaseDelay time.Duration

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit.
	BreakerThreshold uint32

	// BreakerCooldown is how long the circuit stays open before a
	// half-open probe is allowed.
	BreakerCooldown time.Duration
}

// Transport is the production TransportPolicy. Failures retry with
// exponential backoff up to MaxAttempts; consecutive failures across Execute
// calls trip a shared circuit breaker, and while the circuit is open calls
// fail immediately without touching the gateway.
type Transport struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

// NewTransport creates a Transport policy from cfg.
func NewTransport(cfg Config, logger *slog.Logger) *Transport {
	settings := gobreaker.Settings{
		Name:    "gateway-transport",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Transport{
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		logger:  logger,
	}
}

// Execute runs op under the retry and breaker policy.
func (t *Transport) Execute(ctx context.Context, name string, op func(ctx context.Context) error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = t.cfg.BaseDelay

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		_, err := t.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, op(ctx)
		})
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// Retrying against an open circuit is pointless; fail now and
			// let the cooldown do its work.
			return struct{}{}, backoff.Permanent(err)
		}
		t.logger.Warn("transport call failed",
			"op", name,
			"attempt", attempt,
			"error", err,
		)
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(t.cfg.MaxAttempts),
	)
	return err
}
