// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

// Package api provides the read-only operational HTTP surface: health
// probes, Prometheus metrics, and state inspection endpoints. Decision
// state is mutated only by the event stream; nothing here writes.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/airlytix/promopilot/internal/logging"
	"github.com/airlytix/promopilot/internal/rules"
	"github.com/airlytix/promopilot/internal/state"
)

// ReadinessChecker reports whether a pipeline component is ready to serve.
type ReadinessChecker interface {
	IsRunning() bool
}

// Handler serves the operational endpoints.
type Handler struct {
	store     *state.Store
	rules     *rules.Engine
	readiness ReadinessChecker
	started   time.Time
}

// NewHandler creates the operational API handler. readiness may be nil,
// in which case /health/ready only reports process liveness.
func NewHandler(store *state.Store, ruleEngine *rules.Engine, readiness ReadinessChecker) *Handler {
	return &Handler{
		store:     store,
		rules:     ruleEngine,
		readiness: readiness,
		started:   time.Now(),
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

type statsResponse struct {
	Customers    int    `json:"customers"`
	Campaigns    int    `json:"campaigns"`
	LastSequence uint64 `json:"last_sequence"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HealthLive always returns 200 while the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	})
}

// HealthReady returns 200 once the decision router is consuming, 503
// before that or during shutdown.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil && !h.readiness.IsRunning() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "not_ready",
			Uptime:    time.Since(h.started).Round(time.Second).String(),
			Timestamp: time.Now().UTC(),
		})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ready",
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	})
}

// Stats returns aggregate store counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	customers, campaigns := h.store.Counts()
	writeJSON(w, http.StatusOK, statsResponse{
		Customers:    customers,
		Campaigns:    campaigns,
		LastSequence: h.store.LastSequence(),
	})
}

// Customer returns the live state of one customer.
func (h *Handler) Customer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cust, ok := h.store.Customer(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "customer not found"})
		return
	}
	writeJSON(w, http.StatusOK, cust)
}

// Campaign returns the live aggregates of one promotion campaign.
func (h *Handler) Campaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	camp, ok := h.store.Campaign(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "campaign not found"})
		return
	}
	writeJSON(w, http.StatusOK, camp)
}

// Rules returns the immutable rule parameters for this run.
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rules.Params())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode API response")
	}
}
