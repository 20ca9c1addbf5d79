// ABOUTME: Registry of command handlers with lookup by name and platform bulk registration
// ABOUTME: Registration happens during wiring and is sealed before dispatch begins

package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/coven-bot/internal/gateway"
)

// Registry errors
var (
	// ErrDuplicateCommand indicates a handler with the same name is already registered.
	ErrDuplicateCommand = errors.New("command already registered")

	// ErrUnknownCommand indicates no handler is registered under the name.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrRegistrySealed indicates Register was called after Seal.
	ErrRegistrySealed = errors.New("registry is sealed")

	// ErrRegistrationFailed wraps a transport error from the platform's
	// bulk-registration call. Retry policy belongs to the caller.
	ErrRegistrationFailed = errors.New("command registration failed")
)

// Target selects where PushToPlatform registers the command set.
type Target struct {
	guildID string
}

// GlobalTarget registers commands globally.
func GlobalTarget() Target {
	return Target{}
}

// GuildTarget registers commands to a single guild.
func GuildTarget(guildID string) Target {
	return Target{guildID: guildID}
}

// IsGlobal reports whether the target is global registration.
func (t Target) IsGlobal() bool { return t.guildID == "" }

// GuildID returns the guild for guild-scoped registration, empty when global.
func (t Target) GuildID() string { return t.guildID }

type entry struct {
	handler Handler
	meta    Metadata
}

// Registry owns the handler map for the lifetime of the process. It is
// populated during wiring, sealed before the dispatcher starts accepting
// events, and read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	sealed  bool
	logger  *slog.Logger
}

// NewRegistry creates an empty, unsealed Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]entry),
		logger:  logger,
	}
}

// Register adds a handler under name. Returns ErrDuplicateCommand if the
// name is taken and ErrRegistrySealed after Seal.
func (r *Registry) Register(name string, h Handler, meta Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, name)
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCommand, name)
	}

	r.entries[name] = entry{handler: h, meta: meta}
	r.logger.Debug("command registered", "command", name)
	return nil
}

// Seal freezes the registry. Further Register calls fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
	r.logger.Info("command registry sealed", "commands", len(r.entries))
}

// Resolve looks up the handler for name. Returns ErrUnknownCommand if absent.
func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return e.handler, nil
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the platform-facing command definitions in sorted order.
func (r *Registry) Definitions() []gateway.CommandDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]gateway.CommandDefinition, 0, len(r.entries))
	for name, e := range r.entries {
		defs = append(defs, gateway.CommandDefinition{
			Name:        name,
			Description: e.meta.Description,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// PushToPlatform bulk-registers the full command set with the platform,
// either globally or to a single guild. Transport errors are wrapped as
// ErrRegistrationFailed; the caller owns the retry policy.
func (r *Registry) PushToPlatform(ctx context.Context, registrar gateway.CommandRegistrar, target Target) error {
	defs := r.Definitions()

	var err error
	if target.IsGlobal() {
		err = registrar.OverwriteGlobalCommands(ctx, defs)
	} else {
		err = registrar.OverwriteGuildCommands(ctx, target.GuildID(), defs)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	r.logger.Info("commands registered with platform",
		"count", len(defs),
		"global", target.IsGlobal(),
		"guild_id", target.GuildID(),
	)
	return nil
}
