// ABOUTME: Monitor surface exposing health and statistics endpoints over HTTP and gRPC
// ABOUTME: Health endpoints are open; the stats API is JWT-gated when a secret is configured

package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"tailscale.com/tsnet"

	"github.com/2389/coven-bot/internal/auth"
	"github.com/2389/coven-bot/internal/config"
	"github.com/2389/coven-bot/internal/health"
	"github.com/2389/coven-bot/internal/stats"
)

// checkTimeout bounds a single poll across all reporters.
const checkTimeout = 5 * time.Second

// refreshInterval is how often the gRPC health statuses are recomputed.
const refreshInterval = 5 * time.Second

// Config wires a Monitor.
type Config struct {
	Server    config.ServerConfig
	Tailscale config.TailscaleConfig

	// JWTSecret gates /api endpoints when non-empty.
	JWTSecret string

	Reporters []health.Reporter
	Stats     *stats.Collector
	Logger    *slog.Logger
}

// Monitor serves the observation surface: HTTP health and stats endpoints
// plus the standard gRPC health checking protocol. External monitors poll
// it; nothing is pushed.
type Monitor struct {
	serverCfg config.ServerConfig
	tsCfg     config.TailscaleConfig
	reporters []health.Reporter
	stats     *stats.Collector
	logger    *slog.Logger

	httpServer  *http.Server
	grpcServer  *grpc.Server
	grpcHealth  *grpchealth.Server
	tsnetServer *tsnet.Server
}

// New creates a Monitor and registers its routes and gRPC services.
func New(cfg Config) *Monitor {
	m := &Monitor{
		serverCfg: cfg.Server,
		tsCfg:     cfg.Tailscale,
		reporters: cfg.Reporters,
		stats:     cfg.Stats,
		logger:    cfg.Logger,
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/health/ready", m.handleReady)
	mux.HandleFunc("/health/checks", m.handleChecks)

	// API endpoints - auth required if a JWT secret is configured
	statsHandler := http.HandlerFunc(m.handleStats)
	if cfg.JWTSecret != "" {
		verifier := auth.NewJWTVerifier([]byte(cfg.JWTSecret))
		mux.Handle("/api/stats", auth.Middleware(verifier, cfg.Logger)(statsHandler))
	} else {
		mux.Handle("/api/stats", statsHandler)
	}

	m.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	m.grpcServer = grpc.NewServer()
	m.grpcHealth = grpchealth.NewServer()
	healthpb.RegisterHealthServer(m.grpcServer, m.grpcHealth)

	return m
}

// check polls every reporter and returns the worst status with all reports.
func (m *Monitor) check(ctx context.Context) (health.Status, map[string]health.Report) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	worst := health.StatusHealthy
	reports := make(map[string]health.Report, len(m.reporters))
	for _, r := range m.reporters {
		report := r.Check(ctx)
		reports[r.Name()] = report
		worst = health.Worst(worst, report.Status)
	}
	return worst, reports
}

// handleHealth returns 200 OK if the server is alive.
func (m *Monitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK unless any reporter is unhealthy.
func (m *Monitor) handleReady(w http.ResponseWriter, r *http.Request) {
	worst, reports := m.check(r.Context())
	if worst == health.StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		for name, report := range reports {
			if report.Status == health.StatusUnhealthy {
				_, _ = w.Write([]byte(name + ": " + report.Reason + "\n"))
			}
		}
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleChecks returns the full per-reporter detail as JSON.
func (m *Monitor) handleChecks(w http.ResponseWriter, r *http.Request) {
	worst, reports := m.check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if worst == health.StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": worst.String(),
		"checks": reports,
	})
}

// handleStats returns the current statistics snapshot as JSON. Uptime is
// computed at query time.
func (m *Monitor) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := m.stats.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"commands_executed":  snap.Executed,
		"commands_failed":    snap.Failed,
		"commands_timed_out": snap.TimedOut,
		"per_command":        snap.PerCommand,
		"started_at":         snap.StartedAt,
		"uptime":             m.stats.Uptime().String(),
	})
}

// refreshGRPCHealth recomputes the gRPC health statuses from the reporters.
// Degraded still serves; only unhealthy flips to NOT_SERVING.
func (m *Monitor) refreshGRPCHealth(ctx context.Context) {
	worst, reports := m.check(ctx)

	m.grpcHealth.SetServingStatus("", toServing(worst))
	for name, report := range reports {
		m.grpcHealth.SetServingStatus("coven.bot."+name, toServing(report.Status))
	}
}

func toServing(s health.Status) healthpb.HealthCheckResponse_ServingStatus {
	if s == health.StatusUnhealthy {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
