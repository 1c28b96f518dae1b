// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds HTTP routing settings.
type RouterConfig struct {
	// RateLimitReqs is the per-IP request budget per RateLimitWindow for
	// the inspection endpoints. Health probes get a fixed permissive limit
	// so monitoring never trips it.
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

// NewRouter builds the chi route tree for the operational API.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.RateLimitReqs <= 0 {
		cfg.RateLimitReqs = 100
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Get("/stats", h.Stats)
		r.Get("/rules", h.Rules)
		r.Get("/customers/{id}", h.Customer)
		r.Get("/campaigns/{id}", h.Campaign)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
