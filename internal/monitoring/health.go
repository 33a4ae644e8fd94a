package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker serves a JSON liveness snapshot of the optimizer process:
// uptime plus session counts by outcome. Session transitions are fed in by
// the controller through TrackSessionStart/TrackSessionEnd.
type HealthChecker struct {
	mu        sync.RWMutex
	running   int
	completed int
	failed    int
}

// HealthStatus is the wire form of one health snapshot.
type HealthStatus struct {
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	Uptime            string    `json:"uptime"`
	RunningSessions   int       `json:"running_sessions"`
	CompletedSessions int       `json:"completed_sessions"`
	FailedSessions    int       `json:"failed_sessions"`
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// TrackSessionStart records a session entering the running state.
func (h *HealthChecker) TrackSessionStart() {
	h.mu.Lock()
	h.running++
	h.mu.Unlock()
}

// TrackSessionEnd records a session leaving the running state.
func (h *HealthChecker) TrackSessionEnd(failed bool) {
	h.mu.Lock()
	h.running--
	if failed {
		h.failed++
	} else {
		h.completed++
	}
	h.mu.Unlock()
}

// ServeHTTP serves the health snapshot. The process is degraded when every
// recent session failed and none succeeded.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if h.failed > 0 && h.completed == 0 {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	health := HealthStatus{
		Status:            status,
		Timestamp:         time.Now(),
		Uptime:            time.Since(startTime).String(),
		RunningSessions:   h.running,
		CompletedSessions: h.completed,
		FailedSessions:    h.failed,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
