package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ticketforge/reservation-core/internal/observability"
	"github.com/ticketforge/reservation-core/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Post("/v1/holds", h.CreateHold)
	r.Get("/v1/holds/{id}", h.GetHold)
	r.Post("/v1/holds/{id}/release", h.ReleaseHold)
	r.Get("/v1/availability", h.Availability)
	r.Post("/v1/orders", h.CreateOrder)
	r.Get("/v1/orders", h.ListOrders)
	r.Get("/v1/orders/{id}", h.GetOrder)
	r.Post("/v1/orders/{id}/cancel", h.CancelOrder)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
