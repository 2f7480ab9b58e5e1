package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger probes one backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness, readiness and version.
type HealthHandler struct {
	version  string
	backends map[string]Pinger
	logger   *zap.Logger
}

// NewHealthHandler wires the health endpoints. backends maps a name to its
// probe; a nil probe is reported as "disabled".
func NewHealthHandler(version string, backends map[string]Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		version:  version,
		backends: backends,
		logger:   logger.With(zap.String("component", "health_handler")),
	}
}

// Live handles GET /health: process liveness only.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
}

// Ready handles GET /ready: probes every backend under a short budget. The
// service stays ready when degradable backends are down; only an unreachable
// relational store flips readiness, matching the failure table.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.backends))
	for name, p := range h.backends {
		if p == nil {
			checks[name] = "disabled"
			continue
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "down"
			h.logger.Warn("backend probe failed", zap.String("backend", name), zap.Error(err))
			if name == "database" {
				status = http.StatusServiceUnavailable
			}
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{"status": "ready", "checks": checks, "version": h.version}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	WriteJSON(w, status, body)
}

// Version handles GET /version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"version": h.version})
}
