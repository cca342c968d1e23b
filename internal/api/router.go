// Package api provides the HTTP API for HazardHub.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hazardhub/hazardhub/internal/api/handler"
	"github.com/hazardhub/hazardhub/internal/api/middleware"
	"github.com/hazardhub/hazardhub/internal/provider/resilience"
	"github.com/hazardhub/hazardhub/internal/route"
	"github.com/hazardhub/hazardhub/internal/suggestion"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	RequireTLS         bool
	CORSAllowedOrigins []string

	RouteService      *route.Service
	SuggestionService *suggestion.Service

	// Registry reports provider circuit state on /v1/ops/status (optional).
	Registry *resilience.Registry
	// ReadinessChecks gate /v1/ops/ready.
	ReadinessChecks []handler.DependencyCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "hazardhub-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.ReadinessChecks...)
	routeHandler := handler.NewRouteHandler(cfg.RouteService, cfg.Logger)
	suggestionHandler := handler.NewSuggestionHandler(cfg.SuggestionService, cfg.Logger)

	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Each call fans out to the model and the directions provider.
		r.With(expensiveRateLimit).Post("/ai/suggest-routes", suggestionHandler.SuggestRoutes)

		r.Route("/routes", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Post("/", routeHandler.CreateRoute)
			r.Route("/{routeId}", func(r chi.Router) {
				r.Get("/", routeHandler.GetRoute)
				r.Put("/", routeHandler.UpdateRoute)
				r.Delete("/", routeHandler.DeleteRoute)
				r.Post("/select", routeHandler.SelectRoute)
			})
		})

		r.Route("/trips/{tripId}/routes", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", routeHandler.ListTripRoutes)
			r.Get("/selected", routeHandler.GetSelectedRoute)
		})
	})

	return r
}
