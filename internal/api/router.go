package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(handler *Handler, health *HealthHandler, maxConcurrent int, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware (applied to all routes)
	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Probes and scrapes stay outside the concurrency limit.
	r.Get("/", handler.Index)
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		cl := NewConcurrencyLimiter(maxConcurrent, logger)
		r.Use(cl.Middleware)

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/chat", func(r chi.Router) {
				r.Post("/message", handler.Chat)
				r.Get("/history/{session_id}", handler.History)
				r.Post("/reset/{session_id}", handler.Reset)
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", handler.ListProducts)
				r.Get("/search", handler.SearchProducts)
				r.Get("/categories", handler.Categories)
				r.Get("/brands", handler.Brands)
				r.Get("/{id}", handler.GetProduct)
			})

			r.Get("/analytics/ladder", handler.LadderStats)
		})
	})

	return r
}
