// ABOUTME: Lifecycle state machine with validated transitions and change notification
// ABOUTME: Single-writer tracker shared between the lifecycle coordinator and health reporters

package status

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrInvalidTransition indicates a requested state change violates the
// lifecycle transition rules. The tracker rejects invalid transitions rather
// than forcing them; the current state is left untouched.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// State is the lifecycle state of the bot core.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateError
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Change describes a single completed state transition.
type Change struct {
	Previous State
	New      State
	Message  string
	Cause    error
	At       time.Time
}

// Observer receives state change notifications. Observers are invoked
// synchronously from Transition in subscription order and must not block;
// slow work (I/O, network) must be offloaded to a separate goroutine.
type Observer func(Change)

// Tracker owns the current lifecycle state.
//
// Transition is expected to be called from a single writer (the lifecycle
// coordinator); Current is safe for concurrent lock-free reads from any
// goroutine.
type Tracker struct {
	state     atomic.Int32
	mu        sync.Mutex
	observers []Observer
	logger    *slog.Logger
}

// NewTracker creates a Tracker resting in StateStopped.
func NewTracker(logger *slog.Logger) *Tracker {
	t := &Tracker{logger: logger}
	t.state.Store(int32(StateStopped))
	return t
}

// Current returns the current state without blocking.
func (t *Tracker) Current() State {
	return State(t.state.Load())
}

// Subscribe registers an observer for subsequent transitions. Subscriptions
// are expected to happen during wiring, before the coordinator starts.
func (t *Tracker) Subscribe(obs Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, obs)
}

// Transition moves the tracker to newState and notifies observers.
//
// Rules: StateRunning is reachable only from StateStarting, StateStopping
// only from StateRunning, StateStarting only from StateStopped. StateStopped
// and StateError are resting states reachable from any other state.
// Self-transitions are rejected. Returns ErrInvalidTransition when a rule is
// violated.
//
// Observers are notified synchronously after the state is stored, so a
// Current call from an observer sees the new state.
func (t *Tracker) Transition(newState State, message string, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := State(t.state.Load())
	if !validTransition(prev, newState) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, newState)
	}

	t.state.Store(int32(newState))

	t.logger.Info("lifecycle transition",
		"from", prev.String(),
		"to", newState.String(),
		"message", message,
		"cause", cause,
	)

	change := Change{
		Previous: prev,
		New:      newState,
		Message:  message,
		Cause:    cause,
		At:       time.Now(),
	}
	for _, obs := range t.observers {
		obs(change)
	}
	return nil
}

func validTransition(from, to State) bool {
	if from == to {
		return false
	}
	switch to {
	case StateStopped, StateError:
		return true
	case StateStarting:
		return from == StateStopped
	case StateRunning:
		return from == StateStarting
	case StateStopping:
		return from == StateRunning
	default:
		return false
	}
}
