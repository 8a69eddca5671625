// Package api provides the HTTP API of the Konect reference backend.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/konect/konect/internal/api/handler"
	"github.com/konect/konect/internal/api/middleware"
	"github.com/konect/konect/internal/api/models"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version string
	Logger  zerolog.Logger

	// Metrics and Tracer are optional.
	Metrics *middleware.Metrics
	Tracer  trace.Tracer

	RequireTLS bool

	Sessions    handler.SessionService
	ReadyChecks map[string]handler.ReadyChecker

	// Zero values fall back to the package defaults.
	AlertRateLimit    middleware.RateLimitConfig
	StandardRateLimit middleware.RateLimitConfig
}

// NewRouter creates the chi router serving the pairing endpoints and the
// probes.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Order matters: the request ID must exist before anything logs it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(cfg.Tracer))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		models.NewNotFound(middleware.GetRequestID(req.Context()), "no route for "+req.URL.Path).
			WithInstance(req.URL.Path).
			Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		models.NewProblem(models.ProblemTypeNotFound, "Method not allowed", http.StatusMethodNotAllowed,
			middleware.GetRequestID(req.Context())).
			WithDetail(req.Method + " is not supported on " + req.URL.Path).
			WithInstance(req.URL.Path).
			Write(w)
	})

	alertLimit := cfg.AlertRateLimit
	if alertLimit.RequestLimit == 0 {
		alertLimit = middleware.AlertRateLimit
	}
	standardLimit := cfg.StandardRateLimit
	if standardLimit.RequestLimit == 0 {
		standardLimit = middleware.StandardRateLimit
	}

	ops := handler.NewOpsHandler(cfg.Version, cfg.ReadyChecks, cfg.Logger)
	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)

	sessions := handler.NewSessionHandler(cfg.Sessions, cfg.Logger)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireJSON)
		r.Use(middleware.RateLimitByIP(standardLimit))

		r.Post("/check-device", sessions.CheckDevice)
		r.Post("/register", sessions.Register)
		r.Post("/remove-device", sessions.RemoveDevice)
		// Each alert fans out one push per member.
		r.With(middleware.RateLimitByIP(alertLimit)).Post("/trigger-alert", sessions.TriggerAlert)
	})

	return r
}
