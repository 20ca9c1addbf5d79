// ABOUTME: Tests for the console platform adapter
// ABOUTME: Drives the read loop through an in-memory pipe

package console

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-bot/internal/gateway"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSession_OpenEmitsReady(t *testing.T) {
	p := New(strings.NewReader(""), io.Discard, testLogger())

	require.NoError(t, p.Session().Open(context.Background()))
	defer p.Session().Close(context.Background())

	ev := <-p.Connections()
	assert.Equal(t, gateway.ConnConnected, ev.State)
	ev = <-p.Connections()
	assert.Equal(t, gateway.ConnReady, ev.State)
	assert.Equal(t, gateway.ConnReady, p.Session().State())
}

func TestSession_ReadLoopEmitsInteractions(t *testing.T) {
	in := strings.NewReader("ping\n/stats verbose=true extra words\n")
	p := New(in, io.Discard, testLogger())

	require.NoError(t, p.Session().Open(context.Background()))
	defer p.Session().Close(context.Background())

	select {
	case ev := <-p.Interactions():
		assert.Equal(t, "ping", ev.Command)
		assert.Nil(t, ev.Options)
	case <-time.After(time.Second):
		t.Fatal("no interaction for ping")
	}

	select {
	case ev := <-p.Interactions():
		assert.Equal(t, "stats", ev.Command)
		assert.Equal(t, "true", ev.Options["verbose"])
		assert.Equal(t, "extra words", ev.Options["args"])
	case <-time.After(time.Second):
		t.Fatal("no interaction for stats")
	}
}

func TestSession_CloseClosesChannels(t *testing.T) {
	p := New(strings.NewReader(""), io.Discard, testLogger())

	require.NoError(t, p.Session().Open(context.Background()))
	drainConnections(p)

	require.NoError(t, p.Session().Close(context.Background()))
	require.NoError(t, p.Session().Close(context.Background()), "close must be idempotent")

	_, ok := <-p.Interactions()
	assert.False(t, ok, "interactions channel should be closed")
	assert.Equal(t, gateway.ConnDisconnected, p.Session().State())
}

func drainConnections(p *Platform) {
	for {
		select {
		case <-p.Connections():
		default:
			return
		}
	}
}

func TestInteraction_WritesReplies(t *testing.T) {
	var out strings.Builder
	i := &interaction{out: &out}

	require.NoError(t, i.Respond(context.Background(), gateway.Response{Content: "Pong!"}))
	require.NoError(t, i.Followup(context.Background(), gateway.Response{Content: "stats", Ephemeral: true}))

	assert.Equal(t, "Pong!\n(only you) stats\n", out.String())
}

func TestRegistrar_PrintsCommands(t *testing.T) {
	var out strings.Builder
	p := New(strings.NewReader(""), &out, testLogger())

	err := p.Registrar().OverwriteGlobalCommands(context.Background(), []gateway.CommandDefinition{
		{Name: "ping", Description: "Check bot responsiveness"},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "registered /ping")
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantOpts map[string]any
	}{
		{"ping", "ping", nil},
		{"/ping", "ping", nil},
		{"deploy env=prod force=yes", "deploy", map[string]any{"env": "prod", "force": "yes"}},
		{"say hello there", "say", map[string]any{"args": "hello there"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, opts := parseLine(tt.line)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantOpts, opts)
		})
	}
}
