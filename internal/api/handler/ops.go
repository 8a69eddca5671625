// Package handler provides the HTTP handlers of the Konect backend.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/api/models"
	"github.com/konect/konect/internal/api/response"
)

const readyTimeout = 2 * time.Second

// ReadyChecker reports whether a dependency can serve requests.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// OpsHandler serves the liveness and readiness probes.
type OpsHandler struct {
	version string
	checks  map[string]ReadyChecker
	logger  zerolog.Logger
}

// NewOpsHandler creates an OpsHandler. Each named check must pass for the
// service to report ready.
func NewOpsHandler(version string, checks map[string]ReadyChecker, logger zerolog.Logger) *OpsHandler {
	return &OpsHandler{
		version: version,
		checks:  checks,
		logger:  logger,
	}
}

// HealthCheck handles GET /health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:  models.HealthStatusOK,
		Time:    time.Now().UTC(),
		Version: h.version,
	})
}

// ReadinessCheck handles GET /ready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	health := models.Health{
		Status:  models.HealthStatusOK,
		Time:    time.Now().UTC(),
		Version: h.version,
		Checks:  make(map[string]string, len(h.checks)),
	}

	for name, check := range h.checks {
		if err := check.Ready(ctx); err != nil {
			h.logger.Warn().Err(err).Str("check", name).Msg("readiness check failed")
			health.Status = models.HealthStatusDown
			health.Checks[name] = err.Error()
			continue
		}
		health.Checks[name] = string(models.HealthStatusOK)
	}

	status := http.StatusOK
	if health.Status != models.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}
