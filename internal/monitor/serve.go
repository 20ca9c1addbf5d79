// ABOUTME: Listener setup and serve loop for the monitor servers
// ABOUTME: Supports plain TCP or Tailscale tsnet listeners including Funnel and HTTPS

package monitor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/coven-bot/internal/config"
)

// tsnet ports for the monitor when Tailscale carries the listeners.
const (
	tsGRPCPort  = ":50051"
	tsHTTPPort  = ":80"
	tsHTTPSPort = ":443"
)

// Run starts the monitor servers and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if a
// server fails.
func (m *Monitor) Run(ctx context.Context) error {
	httpLn, grpcLn, err := m.setupListeners(ctx)
	if err != nil {
		return err
	}

	errCh := m.startServers(httpLn, grpcLn)

	// Keep the gRPC health statuses current while serving.
	go m.refreshLoop(ctx)

	serverErr := m.waitForShutdownSignal(ctx, errCh)
	shutdownErr := m.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

func (m *Monitor) refreshLoop(ctx context.Context) {
	m.refreshGRPCHealth(ctx)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshGRPCHealth(ctx)
		}
	}
}

// setupListeners creates listeners based on configuration (Tailscale or TCP).
// The gRPC listener is nil when no gRPC address is configured.
func (m *Monitor) setupListeners(ctx context.Context) (httpLn, grpcLn net.Listener, err error) {
	if m.tsCfg.Enabled {
		m.warnIgnoredAddresses()
		return m.setupTailscaleListeners(ctx)
	}
	return m.setupTCPListeners()
}

// warnIgnoredAddresses logs a warning if server addresses are configured but Tailscale is enabled.
func (m *Monitor) warnIgnoredAddresses() {
	if m.serverCfg.HTTPAddr != "" || m.serverCfg.GRPCAddr != "" {
		m.logger.Warn("server.http_addr and server.grpc_addr are ignored when tailscale is enabled",
			"http_addr", m.serverCfg.HTTPAddr,
			"grpc_addr", m.serverCfg.GRPCAddr,
		)
	}
}

// setupTCPListeners creates standard TCP listeners for HTTP and optionally gRPC.
func (m *Monitor) setupTCPListeners() (httpLn, grpcLn net.Listener, err error) {
	m.logger.Info("starting monitor",
		"http_addr", m.serverCfg.HTTPAddr,
		"grpc_addr", m.serverCfg.GRPCAddr,
	)

	httpLn, err = net.Listen("tcp", m.serverCfg.HTTPAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	if m.serverCfg.GRPCAddr != "" {
		grpcLn, err = net.Listen("tcp", m.serverCfg.GRPCAddr)
		if err != nil {
			_ = httpLn.Close()
			return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	return httpLn, grpcLn, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "coven-bot", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListeners creates a tsnet server and returns listeners for HTTP and gRPC.
func (m *Monitor) setupTailscaleListeners(ctx context.Context) (httpLn, grpcLn net.Listener, err error) {
	stateDir, err := resolveTailscaleStateDir(m.tsCfg.StateDir)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(m.tsCfg.AuthKey)
	if err != nil {
		return nil, nil, err
	}

	m.tsnetServer = &tsnet.Server{
		Hostname:  m.tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: m.tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	m.logger.Info("starting tailscale node",
		"hostname", m.tsCfg.Hostname,
		"state_dir", stateDir,
		"ephemeral", m.tsCfg.Ephemeral,
	)
	nodeStatus, err := m.tsnetServer.Up(ctx)
	if err != nil {
		_ = m.tsnetServer.Close()
		return nil, nil, fmt.Errorf("starting tailscale: %w", err)
	}
	m.logTailscaleStatus(nodeStatus)

	grpcLn, err = m.tsnetServer.Listen("tcp", tsGRPCPort)
	if err != nil {
		_ = m.tsnetServer.Close()
		return nil, nil, fmt.Errorf("listening on tailscale gRPC port: %w", err)
	}

	httpLn, err = m.createTailscaleHTTPListener(m.tsCfg, grpcLn)
	if err != nil {
		return nil, nil, err
	}
	return httpLn, grpcLn, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (m *Monitor) logTailscaleStatus(nodeStatus *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(nodeStatus.TailscaleIPs) > 0 {
		tsAddr = nodeStatus.TailscaleIPs[0].String()
	} else {
		m.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if nodeStatus.Self != nil {
		dnsName = nodeStatus.Self.DNSName
	}
	m.logger.Info("tailscale node ready",
		"hostname", m.tsCfg.Hostname,
		"tailscale_ip", tsAddr,
		"dns_name", dnsName,
	)
}

// createTailscaleHTTPListener creates the appropriate HTTP listener based on config.
func (m *Monitor) createTailscaleHTTPListener(tsCfg config.TailscaleConfig, grpcLn net.Listener) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		m.logger.Info("enabling tailscale funnel (public HTTPS) on " + tsHTTPSPort)
		ln, err := m.tsnetServer.ListenFunnel("tcp", tsHTTPSPort)
		if err != nil {
			_ = grpcLn.Close()
			_ = m.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return m.createTailscaleTLSListener(grpcLn)
	default:
		ln, err := m.tsnetServer.Listen("tcp", tsHTTPPort)
		if err != nil {
			_ = grpcLn.Close()
			_ = m.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (m *Monitor) createTailscaleTLSListener(grpcLn net.Listener) (net.Listener, error) {
	m.logger.Info("enabling HTTPS with Tailscale certs on " + tsHTTPSPort)
	ln, err := m.tsnetServer.Listen("tcp", tsHTTPSPort)
	if err != nil {
		_ = grpcLn.Close()
		_ = m.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := m.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = grpcLn.Close()
		_ = m.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// startServers starts HTTP and gRPC servers in goroutines, returning error channel.
func (m *Monitor) startServers(httpLn, grpcLn net.Listener) chan error {
	errCh := make(chan error, 2)

	go func() {
		m.logger.Info("monitor HTTP server listening", "addr", httpLn.Addr().String())
		if err := m.httpServer.Serve(httpLn); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if grpcLn != nil {
		go func() {
			m.logger.Info("monitor gRPC server listening", "addr", grpcLn.Addr().String())
			if err := m.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (m *Monitor) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		m.logger.Info("context canceled, stopping monitor")
		return nil
	case err := <-errCh:
		m.logger.Error("monitor server error", "error", err)
		m.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (m *Monitor) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		m.logger.Error("additional monitor server error", "error", additionalErr)
	default:
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (m *Monitor) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Shutdown(ctx)
}

// Shutdown gracefully stops the monitor servers and releases resources.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down monitor")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", m.httpServer.Shutdown(ctx))

	m.shutdownGRPCServer(ctx)

	if m.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", m.tsnetServer.Close())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (m *Monitor) shutdownGRPCServer(ctx context.Context) {
	stopped := make(chan struct{})
	go func() {
		m.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		m.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}
