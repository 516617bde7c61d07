/**
 * @description
 * This file sets up the HTTP router for the contribution-service. It defines the API
 * endpoints, associates them with their handlers, and applies the middleware for
 * authentication, rate limiting, and CORS.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling for the web client.
 * - github.com/prometheus/client_golang: The /metrics endpoint.
 */

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the router's collaborators and limits.
type RouterConfig struct {
	Keys                   KeySource
	InternalAPIKey         string
	AllowedOrigins         []string
	RateLimiter            RateLimiter
	ContributionsPerMinute int
	Logger                 *slog.Logger
}

// NewRouter creates the chi router with every contribution-service route.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, InternalAPIKeyHeader},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhooks/paystack", h.handlePaystackWebhook)

	r.Route("/contributions", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Keys, logger))

		r.With(RateLimitMiddleware(cfg.RateLimiter, "contribute", cfg.ContributionsPerMinute, time.Minute, logger)).
			Post("/", h.handleContribute)
		r.Get("/verify/{reference}", h.handleVerifyGatewayContribution)
		r.Get("/history", h.handleListContributions)
		r.Get("/settings", h.handleGetSettings)
		r.Patch("/settings", h.handleUpdateSettings)
		r.Get("/balances", h.handleGetBalances)
	})

	r.Route("/admin/ica", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))
		r.Post("/apply-interest", h.handleApplyInterest)
		r.Get("/summary", h.handleAdminSummary)
	})

	return r
}
