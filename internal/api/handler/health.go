package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/datacove/exporttrack/internal/tracker"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	registry *tracker.Registry
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(registry *tracker.Registry) *HealthHandler {
	return &HealthHandler{
		registry: registry,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	TrackedObjects int    `json:"tracked_objects,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		TrackedObjects: h.registry.Count(),
	})
}
