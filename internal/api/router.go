// Package api provides the HTTP API for the ComasLimpio notification service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/comaslimpio/notification-api/internal/api/handler"
	"github.com/comaslimpio/notification-api/internal/api/middleware"
	"github.com/comaslimpio/notification-api/internal/featureflags"
	"github.com/comaslimpio/notification-api/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// RateLimit is requests per minute per client IP. Zero uses the default.
	RateLimit int

	Processor       handler.LocationProcessor
	Users           handler.UserLookup
	Sender          handler.RawSender
	FeatureFlags    *featureflags.Service
	Registry        *resilience.Registry
	ReadinessChecks []handler.DependencyCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "notification-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(cors.AllowAll().Handler)         // Mobile and web clients call from any origin
	r.Use(middleware.RateLimitByIP(middleware.PerMinute(cfg.RateLimit)))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.Registry, cfg.FeatureFlags, cfg.ReadinessChecks)
	locationHandler := handler.NewLocationHandler(cfg.Processor, cfg.Logger)
	pushHandler := handler.NewPushHandler(cfg.Users, cfg.Sender, cfg.Logger)

	r.Get("/health", opsHandler.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireJSON)
		r.Post("/update-truck-location", locationHandler.UpdateTruckLocation)
		r.Post("/test-notification", locationHandler.TestNotification)
		r.Post("/test-push", pushHandler.TestPush)
	})

	// Paths used by older app builds.
	r.With(middleware.RequireJSON).Post("/update-location", locationHandler.UpdateTruckLocation)
	r.With(middleware.RequireJSON).Post("/test-notification", locationHandler.TestNotification)

	r.Route("/ops", func(r chi.Router) {
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)

		if cfg.FeatureFlags != nil {
			flagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlags)
			r.Route("/flags", func(r chi.Router) {
				r.Get("/", flagsHandler.ListFeatureFlags)
				r.With(middleware.RequireJSON).Put("/", flagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", flagsHandler.InvalidateCache)
				r.Get("/{key}", flagsHandler.GetFeatureFlag)
			})
		}
	})

	return r
}
