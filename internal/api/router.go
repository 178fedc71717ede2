package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/grove/internal/api/middleware"
	"github.com/eldtechnologies/grove/internal/config"
	"github.com/eldtechnologies/grove/internal/handlers"
	"github.com/eldtechnologies/grove/internal/store"
)

// NewRouter creates and configures the HTTP router. The redis client is
// optional; without it rate limiting is disabled.
func NewRouter(logger zerolog.Logger, cfg *config.Config, db store.DataStore, rdb *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(1 * 1024 * 1024)) // 1MB max body, message payloads can be large
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting when redis is available
	if rdb != nil {
		limiter := middleware.NewRateLimiter(rdb, logger, middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		})
		r.Use(limiter.Middleware)
	}

	// CORS - allow all origins (clients call from anywhere)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(db, rdb, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	r.Route("/topics", func(r chi.Router) {
		r.Get("/", h.ListTopics)
		r.Post("/", h.CreateTopic)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetTopic)
			r.Patch("/", h.UpdateTopic)
			r.Delete("/", h.DeleteTopic)
			r.Put("/active-node", h.SetActiveNode)
			r.Get("/tree", h.GetTree)
			r.Get("/branch", h.GetBranch)
			r.Post("/messages", h.CreateMessage)
		})
	})

	r.Route("/messages/{id}", func(r chi.Router) {
		r.Get("/", h.GetMessage)
		r.Patch("/", h.UpdateMessage)
		r.Delete("/", h.DeleteMessage)
		r.Get("/path", h.GetPath)
	})

	return r
}
