// ABOUTME: Health status types and the reporter interface polled by external monitors
// ABOUTME: Reporters are pure reads; they never mutate the state they inspect

package health

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the health of one checked component.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string form so the health endpoint
// stays readable to external monitors.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the string form back into a Status.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "healthy":
		*s = StatusHealthy
	case "degraded":
		*s = StatusDegraded
	case "unhealthy":
		*s = StatusUnhealthy
	default:
		return fmt.Errorf("unknown health status %q", str)
	}
	return nil
}

// Report is the result of one health check.
type Report struct {
	Status    Status         `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
}

// Reporter is one pollable health check. Checks are pull-only: an external
// monitor calls Check on demand, and reporters read live state at query
// time rather than caching. A reporter must tolerate its collaborator being
// momentarily unavailable and report unhealthy with a reason instead of
// propagating a fault.
type Reporter interface {
	Name() string
	Check(ctx context.Context) Report
}

// Worst returns the worse of two statuses.
func Worst(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}
