package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/voice-agent/app"
	"github.com/upb/voice-agent/internal/observability"
	"github.com/upb/voice-agent/utils"
)

const defaultRequestTimeout = 120 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.LoggingMiddleware(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(observability.MetricsMiddleware)

	timeout := deps.Config.Server.WriteTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	r.Use(middleware.Timeout(timeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID", "X-Voice-Agent-Degraded"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Liveness and configuration status
	r.Get("/", deps.HealthHandler.HandleRoot)
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// Query endpoints (require an admin bearer token)
	r.Group(func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAdmin)
		r.Post("/voice-query", deps.QueryHandler.HandleVoiceQuery)
		r.Post("/text-query", deps.QueryHandler.HandleTextQuery)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

// SetupMetricsRoutes serves the Prometheus registry on its own listener
func SetupMetricsRoutes() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return r
}
