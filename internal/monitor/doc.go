// Package monitor runs the observability servers for the bot.
//
// The HTTP server exposes:
//   - GET /health         liveness (always 200 while the process serves)
//   - GET /health/ready   readiness (503 when any reporter is Unhealthy)
//   - GET /health/checks  full JSON report per reporter
//   - GET /api/stats      dispatch statistics (JWT-protected when a secret is configured)
//
// The gRPC server implements grpc.health.v1.Health with one service entry
// per reporter, refreshed on a fixed interval.
//
// Listeners are plain TCP by default, or tsnet listeners when Tailscale is
// enabled, including optional HTTPS with Tailscale certs and Funnel.
package monitor
