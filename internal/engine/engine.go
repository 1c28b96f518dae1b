// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

// Package engine orchestrates one promotion event at a time: query state,
// evaluate rules, update state, run the stochastic trial, and hand the
// results to emission. Events for one customer must arrive in order on a
// single worker; the engine itself is sequential.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/airlytix/promopilot/internal/events"
	"github.com/airlytix/promopilot/internal/logging"
	"github.com/airlytix/promopilot/internal/metrics"
	"github.com/airlytix/promopilot/internal/rules"
	"github.com/airlytix/promopilot/internal/state"
)

// Emitter publishes decision results to the outbound channels.
type Emitter interface {
	EmitFeedback(ctx context.Context, event *events.FeedbackEvent) error
	EmitBooking(ctx context.Context, event *events.BookingEvent) error
}

// Config holds decision engine settings.
type Config struct {
	// MaxEmitRetries bounds retries of a failed outbound publish before the
	// event's downstream effects are dropped.
	MaxEmitRetries int

	// EmitRetryBackoff is the wait between publish retries.
	EmitRetryBackoff time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxEmitRetries:   3,
		EmitRetryBackoff: 200 * time.Millisecond,
	}
}

// Decider processes promotion events strictly in arrival order per customer.
// The random source is injected so decision outcomes are reproducible under
// a fixed seed.
type Decider struct {
	store   *state.Store
	rules   *rules.Engine
	emitter Emitter
	rng     *rand.Rand
	config  Config
}

// NewDecider creates a decision engine. rng must not be shared with other
// goroutines; the engine draws from it sequentially.
func NewDecider(store *state.Store, ruleEngine *rules.Engine, emitter Emitter, rng *rand.Rand, cfg Config) *Decider {
	if cfg.MaxEmitRetries <= 0 {
		cfg.MaxEmitRetries = 3
	}
	if cfg.EmitRetryBackoff <= 0 {
		cfg.EmitRetryBackoff = 200 * time.Millisecond
	}
	return &Decider{
		store:   store,
		rules:   ruleEngine,
		emitter: emitter,
		rng:     rng,
		config:  cfg,
	}
}

// Process handles one validated promotion event. It never returns an error
// for per-event failures — a single bad event must not halt the stream — so
// a non-nil return indicates the caller should not ack (currently never).
//
// The probability computation uses state as it was before this event is
// recorded: last_promo_at must be the previous exposure, and the fatigue
// count is the pruned prior count plus the current exposure.
func (d *Decider) Process(ctx context.Context, ev *events.PromotionEvent) error {
	start := time.Now()
	defer metrics.ObserveDecision(start)

	if d.store.Applied(ev.EventID) {
		metrics.EventsDuplicate.Inc()
		logging.Debug().
			Str("event_id", ev.EventID).
			Str("customer_id", ev.CustomerID).
			Msg("Duplicate event skipped")
		return nil
	}

	now := ev.EventTS
	window := d.rules.Params().FatigueWindow()

	// Pre-update reads: prior exposures and previous promo timestamp.
	priorExposures := d.store.ExposureCount(ev.CustomerID, window, now)
	lastPromo := d.store.LastPromoAt(ev.CustomerID)

	// The current exposure counts toward fatigue.
	exposuresInWindow := priorExposures + 1

	adjusted, expl := d.rules.AdjustedProbability(ev.Route, now, lastPromo, exposuresInWindow)
	metrics.AdjustedProbability.Observe(adjusted)

	d.store.RecordPromo(ev.EventID, ev.CustomerID, ev.PromoID, now)

	r := d.rng.Float64()
	booking := r < adjusted
	metrics.RecordBookingOutcome(booking)

	feedback := &events.FeedbackEvent{
		SchemaVersion:         events.SchemaVersion,
		EventID:               ev.EventID + ":feedback",
		CustomerID:            ev.CustomerID,
		PromoID:               ev.PromoID,
		Route:                 ev.Route,
		BaselineProb:          expl.BaselineProb,
		AdjustedProb:          expl.AdjustedProb,
		Fatigue:               expl.Fatigue,
		Uplift:                expl.Uplift,
		MinutesSinceLastPromo: expl.MinutesSinceLastPromo,
		Booking:               booking,
		EventTS:               now,
	}

	if err := d.emitWithRetry(ctx, "feedback", func() error {
		return d.emitter.EmitFeedback(ctx, feedback)
	}); err != nil {
		// Reported and dropped; the stream continues.
		metrics.EventsDropped.WithLabelValues("emit").Inc()
		logging.Error().
			Err(err).
			Str("event_id", ev.EventID).
			Str("customer_id", ev.CustomerID).
			Str("channel", "feedback").
			Msg("Dropping event effects after emit retry exhaustion")
		return nil
	}

	if !booking {
		return nil
	}

	d.store.RecordBooking(ev.EventID+":booking", ev.CustomerID, ev.PromoID, now)

	bookingEvent := &events.BookingEvent{
		SchemaVersion: events.SchemaVersion,
		EventID:       ev.EventID + ":booking",
		CustomerID:    ev.CustomerID,
		Route:         ev.Route,
		PromoID:       ev.PromoID,
		BookingTS:     now,
		Explanation:   expl,
	}

	if err := d.emitWithRetry(ctx, "booking", func() error {
		return d.emitter.EmitBooking(ctx, bookingEvent)
	}); err != nil {
		metrics.EventsDropped.WithLabelValues("emit").Inc()
		logging.Error().
			Err(err).
			Str("event_id", ev.EventID).
			Str("customer_id", ev.CustomerID).
			Str("channel", "booking").
			Msg("Dropping booking emission after retry exhaustion")
	}

	return nil
}

func (d *Decider) emitWithRetry(ctx context.Context, channel string, emit func() error) error {
	var err error
	for attempt := 0; attempt <= d.config.MaxEmitRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.config.EmitRetryBackoff):
			case <-ctx.Done():
				return fmt.Errorf("emit %s canceled: %w", channel, ctx.Err())
			}
		}
		if err = emit(); err == nil {
			return nil
		}
		metrics.PublishErrors.WithLabelValues(channel).Inc()
	}
	return fmt.Errorf("emit %s after %d retries: %w", channel, d.config.MaxEmitRetries, err)
}
