// ABOUTME: A stdin/stdout platform adapter for local development
// ABOUTME: Each input line becomes one interaction; replies print to the output writer

package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/coven-bot/internal/gateway"
)

// Platform is a self-contained chat platform running over an io.Reader and
// io.Writer, normally stdin and stdout. It implements the full collaborator
// surface so the bot can run without any remote platform: every input line
// is parsed as "command key=value ..." and dispatched like a real
// interaction.
type Platform struct {
	session      *Session
	interactions chan gateway.InteractionEvent
	connections  chan gateway.ConnectionEvent
}

// New creates a console platform reading commands from in and writing
// replies to out.
func New(in io.Reader, out io.Writer, logger *slog.Logger) *Platform {
	interactions := make(chan gateway.InteractionEvent, 16)
	connections := make(chan gateway.ConnectionEvent, 4)

	return &Platform{
		session: &Session{
			in:           in,
			out:          out,
			logger:       logger.With("component", "console"),
			interactions: interactions,
			connections:  connections,
		},
		interactions: interactions,
		connections:  connections,
	}
}

// Session returns the platform's session.
func (p *Platform) Session() *Session { return p.session }

// Registrar returns the platform's command registration surface.
func (p *Platform) Registrar() *Session { return p.session }

// Interactions returns the inbound interaction stream.
func (p *Platform) Interactions() <-chan gateway.InteractionEvent { return p.interactions }

// Connections returns the connection event stream.
func (p *Platform) Connections() <-chan gateway.ConnectionEvent { return p.connections }

// Session implements gateway.Session and gateway.CommandRegistrar over the
// console. Open starts the read loop; Close stops it and closes both event
// channels.
type Session struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	interactions chan gateway.InteractionEvent
	connections  chan gateway.ConnectionEvent

	mu     sync.Mutex
	state  gateway.ConnState
	donech chan struct{}

	closeOnce sync.Once
}

// Open marks the session connected, emits the ready signal, and starts the
// read loop.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.donech != nil {
		s.mu.Unlock()
		return fmt.Errorf("console session already open")
	}
	s.donech = make(chan struct{})
	s.state = gateway.ConnReady
	s.mu.Unlock()

	s.connections <- gateway.ConnectionEvent{State: gateway.ConnConnected, At: time.Now()}
	s.connections <- gateway.ConnectionEvent{State: gateway.ConnReady, At: time.Now()}

	go s.readLoop()
	return nil
}

// Close stops the read loop and closes both event channels. The input
// reader is not closed; an os.Stdin read may outlive the session.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = gateway.ConnDisconnected
		if s.donech != nil {
			close(s.donech)
		}
		s.mu.Unlock()

		close(s.connections)
		close(s.interactions)
	})
	return nil
}

// State implements gateway.Session.
func (s *Session) State() gateway.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Latency implements gateway.Session. The console has no wire, so this is
// always zero.
func (s *Session) Latency() time.Duration { return 0 }

// GuildCount implements gateway.Session.
func (s *Session) GuildCount() int { return 1 }

// UserCount implements gateway.Session.
func (s *Session) UserCount() int { return 1 }

// OverwriteGlobalCommands implements gateway.CommandRegistrar by printing
// the command set.
func (s *Session) OverwriteGlobalCommands(_ context.Context, commands []gateway.CommandDefinition) error {
	for _, def := range commands {
		fmt.Fprintf(s.out, "registered /%s — %s\n", def.Name, def.Description)
	}
	return nil
}

// OverwriteGuildCommands implements gateway.CommandRegistrar.
func (s *Session) OverwriteGuildCommands(ctx context.Context, _ string, commands []gateway.CommandDefinition) error {
	return s.OverwriteGlobalCommands(ctx, commands)
}

func (s *Session) readLoop() {
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		select {
		case <-s.donech:
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		name, options := parseLine(line)
		ev := gateway.InteractionEvent{
			Command:     name,
			UserID:      "console",
			Interaction: &interaction{out: s.out},
			Options:     options,
		}

		select {
		case s.interactions <- ev:
		case <-s.donech:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("console read failed", "error", err)
	}
}

// parseLine splits "command key=value ..." into a command name and options.
// Bare words after the command are collected under "args".
func parseLine(line string) (string, map[string]any) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	name := fields[0]

	options := make(map[string]any)
	var args []string
	for _, f := range fields[1:] {
		if key, value, ok := strings.Cut(f, "="); ok && key != "" {
			options[key] = value
			continue
		}
		args = append(args, f)
	}
	if len(args) > 0 {
		options["args"] = strings.Join(args, " ")
	}
	if len(options) == 0 {
		return name, nil
	}
	return name, options
}

// interaction writes replies back to the console writer.
type interaction struct {
	out io.Writer

	mu       sync.Mutex
	deferred bool
}

func (i *interaction) Respond(_ context.Context, resp gateway.Response) error {
	return i.write(resp)
}

func (i *interaction) Defer(_ context.Context, _ bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.deferred = true
	return nil
}

func (i *interaction) Followup(_ context.Context, resp gateway.Response) error {
	return i.write(resp)
}

func (i *interaction) write(resp gateway.Response) error {
	content := resp.Content
	if resp.Ephemeral {
		content = "(only you) " + content
	}
	_, err := fmt.Fprintln(i.out, content)
	return err
}
