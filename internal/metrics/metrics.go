// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

// Package metrics exposes Prometheus instrumentation for the decision
// pipeline: event throughput, decision outcomes, state store size, and
// snapshot durations. Collectors are registered on the default registry
// via promauto and served by the operational HTTP server at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event pipeline metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promopilot_events_received_total",
			Help: "Total promotion events received from the inbound stream",
		},
		[]string{"segment"},
	)

	EventsMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promopilot_events_malformed_total",
			Help: "Total inbound events rejected by schema validation",
		},
	)

	EventsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promopilot_events_duplicate_total",
			Help: "Total events skipped because their id was already applied",
		},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promopilot_events_dropped_total",
			Help: "Total events dropped after retry exhaustion",
		},
		[]string{"stage"}, // "emit"
	)

	DecisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "promopilot_decision_duration_seconds",
			Help:    "End-to-end duration of a single promotion decision",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	// Decision outcome metrics
	BookingsDecided = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promopilot_bookings_total",
			Help: "Total stochastic booking decisions by outcome",
		},
		[]string{"outcome"}, // "booked", "skipped"
	)

	AdjustedProbability = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "promopilot_adjusted_probability",
			Help:    "Distribution of adjusted booking probabilities",
			Buckets: prometheus.LinearBuckets(0.0, 0.05, 21),
		},
	)

	// State store metrics
	CustomersTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "promopilot_customers_tracked",
			Help: "Current number of customers with live state",
		},
	)

	CampaignsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "promopilot_campaigns_tracked",
			Help: "Current number of campaigns with live state",
		},
	)

	CustomersEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promopilot_customers_evicted_total",
			Help: "Total inactive customers evicted by the retention policy",
		},
	)

	// Snapshot metrics
	SnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "promopilot_snapshot_duration_seconds",
			Help:    "Duration of durable state snapshots",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promopilot_snapshot_errors_total",
			Help: "Total snapshot persistence failures",
		},
	)

	SnapshotLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "promopilot_snapshot_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful snapshot",
		},
	)

	// Transport metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promopilot_events_published_total",
			Help: "Total events published to the outbound stream",
		},
		[]string{"channel"}, // "feedback", "booking"
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promopilot_publish_errors_total",
			Help: "Total outbound publish failures",
		},
		[]string{"channel"},
	)
)

// ObserveDecision records the duration of one decision from start time.
func ObserveDecision(start time.Time) {
	DecisionDuration.Observe(time.Since(start).Seconds())
}

// RecordBookingOutcome increments the booking decision counter.
func RecordBookingOutcome(booked bool) {
	if booked {
		BookingsDecided.WithLabelValues("booked").Inc()
	} else {
		BookingsDecided.WithLabelValues("skipped").Inc()
	}
}

// RecordSnapshot records a snapshot result.
func RecordSnapshot(start time.Time, err error) {
	if err != nil {
		SnapshotErrors.Inc()
		return
	}
	SnapshotDuration.Observe(time.Since(start).Seconds())
	SnapshotLastSuccess.SetToCurrentTime()
}
