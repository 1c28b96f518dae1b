// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/airlytix/promopilot/internal/rules"
	"github.com/airlytix/promopilot/internal/state"
)

type fakeReadiness struct{ running bool }

func (f *fakeReadiness) IsRunning() bool { return f.running }

func newTestServer(t *testing.T, readiness ReadinessChecker) (*httptest.Server, *state.Store) {
	t.Helper()
	store := state.NewStore()
	ruleEngine := rules.NewEngine(
		rules.BaselineTable{rules.DefaultRouteKey: 0.05},
		rules.Params{
			PromoUplift:          0.15,
			FatiguePenalty:       0.10,
			DecayFactor:          0.98,
			CooldownMinutes:      30,
			FatigueWindowMinutes: 120,
			MinProb:              0.01,
			MaxProb:              0.95,
		},
	)
	handler := NewHandler(store, ruleEngine, readiness)
	srv := httptest.NewServer(NewRouter(handler, RouterConfig{}))
	t.Cleanup(srv.Close)
	return srv, store
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var buf [4096]byte
	n, _ := resp.Body.Read(buf[:])
	return resp, buf[:n]
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("live always ok", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)
		resp, _ := get(t, srv.URL+"/api/v1/health/live")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("ready follows the router state", func(t *testing.T) {
		readiness := &fakeReadiness{running: false}
		srv, _ := newTestServer(t, readiness)

		resp, _ := get(t, srv.URL+"/api/v1/health/ready")
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status before start = %d, want 503", resp.StatusCode)
		}

		readiness.running = true
		resp, _ = get(t, srv.URL+"/api/v1/health/ready")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status after start = %d, want 200", resp.StatusCode)
		}
	})
}

func TestStateEndpoints(t *testing.T) {
	srv, store := newTestServer(t, nil)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.RecordPromo("ev-1", "cust-1", "promo-1", now)
	store.RecordBooking("ev-1:booking", "cust-1", "promo-1", now)

	t.Run("customer found", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/customers/cust-1")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var cust state.CustomerState
		if err := json.Unmarshal(body, &cust); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if cust.CustomerID != "cust-1" || cust.LastPromoAt == nil {
			t.Errorf("customer = %+v", cust)
		}
	})

	t.Run("customer not found", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/api/v1/customers/nobody")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("campaign counters", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/campaigns/promo-1")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var camp state.CampaignState
		if err := json.Unmarshal(body, &camp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if camp.ExposureCount != 1 || camp.BookingCount != 1 {
			t.Errorf("campaign = %+v, want exposures 1, bookings 1", camp)
		}
	})

	t.Run("stats", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/stats")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var stats statsResponse
		if err := json.Unmarshal(body, &stats); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if stats.Customers != 1 || stats.Campaigns != 1 {
			t.Errorf("stats = %+v, want 1 customer, 1 campaign", stats)
		}
	})

	t.Run("rules are exposed read-only", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/rules")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var params rules.Params
		if err := json.Unmarshal(body, &params); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if params.PromoUplift != 0.15 {
			t.Errorf("promo_uplift = %v, want 0.15", params.PromoUplift)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, _ := get(t, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
