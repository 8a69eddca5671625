package worker

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/api/middleware"
)

// HealthRouter serves GET /health with the worker's stats, for platforms
// that probe background services over HTTP.
func HealthRouter(w *Worker, version string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	r.Get("/health", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"status":  "OK",
			"version": version,
			"worker":  w.StatsSnapshot(),
		})
	})
	return r
}
