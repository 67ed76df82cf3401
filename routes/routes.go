package routes

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/carrot-market/backend/app"
	"github.com/carrot-market/backend/handlers"
	"github.com/carrot-market/backend/middleware"
	"github.com/carrot-market/backend/utils"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultRequestTimeout = 60 * time.Second

// SetupRoutes configures all application routes and middleware.
// Authentication runs on every request and never rejects; the policy
// middleware that follows decides whether the request may proceed.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger

	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	if cfg.Server.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestContext)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recoverer(logger))

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	r.Use(chimw.Timeout(timeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	// Identity and access
	r.Use(deps.AuthMiddleware.Authenticate)
	r.Use(deps.PolicyMiddleware.Enforce)

	authHandler := handlers.NewAuthHandler(deps.AuthService, logger)
	adminHandler := handlers.NewAdminHandler(deps.AuthService, logger)
	locationHandler := handlers.NewLocationHandler(deps.LocationService, logger)
	healthHandler := newHealthHandler(deps)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	if cfg.Observability.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/me", authHandler.HandleMe)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/location/reverse-geocode", locationHandler.HandleReverseGeocode)

		r.Route("/admin", func(r chi.Router) {
			r.Patch("/users/{username}/status", adminHandler.HandleUpdateStatus)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

// newHealthHandler probes the database and, when throttling is enabled, Redis.
func newHealthHandler(deps *app.Dependencies) *handlers.HealthHandler {
	var db *sql.DB
	if deps.DB != nil {
		db = deps.DB.DB
	}

	var redis handlers.Pinger
	if deps.LoginLimiter != nil && deps.LoginLimiter.Enabled() {
		redis = deps.LoginLimiter
	}

	return handlers.NewHealthHandler(db, redis, deps.Logger)
}
