package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	metrics http.Handler
	ready   func(context.Context) error
	log     logger.Logger
}

// NewHealthHandler creates a new health handler. ready may be nil.
func NewHealthHandler(ready func(context.Context) error, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		ready:   ready,
		log:     log,
	}
}

// HandleHealth handles GET /healthz requests by serving the Prometheus
// metrics of the process registry.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HandleReady handles GET /readyz. It answers 503 when the backing store
// cannot be reached.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.log.Warn(r.Context(), "readiness check failed", logger.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, ackResponse{Status: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "ok"})
}
