package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/onem2m/pkg/tree"
)

// Health serves the liveness and readiness endpoints mounted on the binding
// server.
type Health struct {
	store   tree.Store
	version string
}

// NewHealth creates the health handler.
func NewHealth(store tree.Store, version string) *Health {
	return &Health{store: store, version: version}
}

// HealthResponse represents the /health response body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse represents the /ready response body.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler is a liveness check: 200 whenever the process is alive.
func (h *Health) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler checks whether the daemon can serve requests: the data store
// must answer and at least one CSE must be provisioned.
func (h *Health) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	cses, err := h.store.ListCses()
	switch {
	case err != nil:
		checks["storage"] = fmt.Sprintf("error: %v", err)
		ready = false
		message = "Data store not accessible"
	case len(cses) == 0:
		checks["storage"] = "ok"
		checks["cses"] = "none provisioned"
		ready = false
		message = "No CSE provisioned"
	default:
		checks["storage"] = "ok"
		checks["cses"] = fmt.Sprintf("%d provisioned", len(cses))
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
