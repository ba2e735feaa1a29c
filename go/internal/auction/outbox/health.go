package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	LastEventTime     time.Time `json:"last_event_time"`
	EventsProcessed   uint64    `json:"events_processed"`
	PendingEvents     int       `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	NATSConnected     bool      `json:"nats_connected"`
	ListenerActive    bool      `json:"listener_active"`
	Errors            []string  `json:"errors"`
}

// HealthChecks are what HealthChecker runs. Nil checks are skipped.
type HealthChecks struct {
	PingDB         func(ctx context.Context) error
	NATSConnected  func() bool
	ListenerActive func() bool
	CountPending   func(ctx context.Context) (int, error)
	Stats          func() (uint64, time.Time)
}

type HealthChecker struct {
	checks       HealthChecks
	threshold    time.Duration // How long without events before unhealthy
	pendingAlarm int
}

func NewHealthChecker(checks HealthChecks, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		checks:       checks,
		threshold:    threshold,
		pendingAlarm: 1000,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	if h.checks.Stats != nil {
		status.EventsProcessed, status.LastEventTime = h.checks.Stats()
	}

	if h.checks.PingDB != nil {
		if err := h.checks.PingDB(ctx); err != nil {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		} else {
			status.DatabaseConnected = true
		}
	}

	if h.checks.NATSConnected != nil {
		status.NATSConnected = h.checks.NATSConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if h.checks.ListenerActive != nil {
		status.ListenerActive = h.checks.ListenerActive()
		if !status.ListenerActive {
			status.Healthy = false
			status.Errors = append(status.Errors, "listener not active")
		}
	}

	if status.DatabaseConnected && h.checks.CountPending != nil {
		pending, err := h.checks.CountPending(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > h.pendingAlarm {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	// only stale if something is waiting
	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		since := time.Since(status.LastEventTime)
		if since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events processed for %s", since))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
