// Package health exposes the HTTP surface consumed by operators and
// the presentation layer: liveness, readiness, and the read-only
// printer status snapshot.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/RussHewgill/printer-watcher-sub000/internal/domain"
	"github.com/RussHewgill/printer-watcher-sub000/internal/service"
)

// Checker provides health check and snapshot endpoints
type Checker struct {
	supervisor *service.Supervisor
	logger     zerolog.Logger
}

// NewChecker creates a new health checker
func NewChecker(supervisor *service.Supervisor, logger zerolog.Logger) *Checker {
	return &Checker{
		supervisor: supervisor,
		logger:     logger.With().Str("component", "health-checker").Logger(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                            `json:"status"`
	Timestamp string                            `json:"timestamp"`
	Printers  map[string]domain.ConnectionState `json:"printers"`
}

// HealthHandler reports overall health: healthy when every registered
// printer is connected, degraded otherwise. A degraded fleet still
// returns 200; individual reconnect loops are expected behavior.
func (c *Checker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := c.supervisor.Table().Snapshot()

	status := "healthy"
	printers := make(map[string]domain.ConnectionState, len(snapshot))
	for id, s := range snapshot {
		printers[string(id)] = s.Connection
		if s.Connection != domain.ConnConnected {
			status = "degraded"
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Printers:  printers,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// LiveHandler returns 200 if the process is running
func (c *Checker) LiveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadyHandler returns 200 once the supervisor has its fleet registered
func (c *Checker) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ready := c.supervisor.PrinterCount() > 0

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "not_ready",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// PrintersHandler returns the full normalized status snapshot for the
// presentation layer.
func (c *Checker) PrintersHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := c.supervisor.Table().Snapshot()

	out := make(map[string]domain.NormalizedStatus, len(snapshot))
	for id, s := range snapshot {
		out[string(id)] = s
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode printers snapshot")
	}
}
