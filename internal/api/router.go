// Package api provides the HTTP API for routecast.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/api/handler"
	"github.com/routecast/routecast/internal/api/middleware"
	"github.com/routecast/routecast/internal/events"
	"github.com/routecast/routecast/internal/forecastcache"
	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/ranking"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Ranking scores routes (required).
	Ranking *ranking.Service
	// Sessions stores session state. Default: a new in-memory store.
	Sessions *ranking.SessionStore
	// Events is the diagnostic ring buffer. Default: a new ring.
	Events *events.Ring
	// Cache is reported by the ready and status probes.
	Cache forecastcache.Repository
	// Registry is reported by the status probe.
	Registry *resilience.Registry

	// DefaultAPIKey is used when a request carries no X-Weather-Api-Key.
	DefaultAPIKey string
	// Location interprets targets without an offset. Default: UTC.
	Location *time.Location
	// MaxUploadBytes bounds GPX uploads. Default: 20 MB.
	MaxUploadBytes int64
	// RequireTLS rejects plain HTTP forwarded by a proxy.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "routecast-api"
	}
	if cfg.Sessions == nil {
		cfg.Sessions = ranking.NewSessionStore(0)
	}
	if cfg.Events == nil {
		cfg.Events = events.NewRing(0)
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
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Cache:     cfg.Cache,
		Registry:  cfg.Registry,
		Events:    cfg.Events,
	})
	routeHandler := handler.NewRouteHandler(handler.RouteHandlerConfig{
		Ranking:        cfg.Ranking,
		DefaultAPIKey:  cfg.DefaultAPIKey,
		Location:       cfg.Location,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	sessionHandler := handler.NewSessionHandler(routeHandler, cfg.Sessions, cfg.Logger)
	eventsHandler := handler.NewEventsHandler(cfg.Events)

	scoringRateLimit := middleware.RateLimitByAPIKey(middleware.ScoringRateLimit)
	uploadRateLimit := middleware.RateLimitByAPIKey(middleware.UploadRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		// Scoring fans out to the weather provider.
		r.With(scoringRateLimit, middleware.RequireJSON).Post("/routes:score", routeHandler.ScoreRoutes)
		r.With(uploadRateLimit, middleware.RequireContentType("multipart/form-data")).Post("/routes:upload", routeHandler.UploadRoutes)

		r.Route("/sessions", func(r chi.Router) {
			r.With(scoringRateLimit, middleware.RequireJSON).Post("/", sessionHandler.CreateSession)
			r.Route("/{sessionId}", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", sessionHandler.GetSession)
				r.With(standardRateLimit).Delete("/", sessionHandler.DeleteSession)
				r.With(scoringRateLimit, middleware.RequireJSON).Put("/target", sessionHandler.UpdateTarget)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", eventsHandler.ListEvents)
			r.Delete("/", eventsHandler.ClearEvents)
		})
	})

	return r
}
