// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package eventstream

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/airlytix/promopilot/internal/engine"
	"github.com/airlytix/promopilot/internal/events"
	"github.com/airlytix/promopilot/internal/rules"
	"github.com/airlytix/promopilot/internal/state"
)

type nullEmitter struct {
	feedback int
	bookings int
}

func (n *nullEmitter) EmitFeedback(context.Context, *events.FeedbackEvent) error {
	n.feedback++
	return nil
}

func (n *nullEmitter) EmitBooking(context.Context, *events.BookingEvent) error {
	n.bookings++
	return nil
}

func newTestHandler(t *testing.T) (*PromotionHandler, *state.Store, *nullEmitter) {
	t.Helper()
	store := state.NewStore()
	emitter := &nullEmitter{}
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
	decider := engine.NewDecider(store, ruleEngine, emitter, rand.New(rand.NewSource(1)), engine.DefaultConfig())
	return NewPromotionHandler(decider, store), store, emitter
}

func TestPromotionHandlerHandle(t *testing.T) {
	t.Run("valid event is processed and acked", func(t *testing.T) {
		handler, store, emitter := newTestHandler(t)

		ev := &events.PromotionEvent{
			SchemaVersion: events.SchemaVersion,
			EventID:       "ev-1",
			CustomerID:    "cust-1",
			PromoID:       "promo-1",
			Route:         "JFK-LAX",
			Segment:       "leisure",
			EventTS:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		}
		payload, err := events.NewSerializer().MarshalPromotion(ev)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		if err := handler.Handle(message.NewMessage("ev-1", payload)); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if !store.Applied("ev-1") {
			t.Error("event not applied to state")
		}
		if emitter.feedback != 1 {
			t.Errorf("feedback emissions = %d, want 1", emitter.feedback)
		}
		if store.LastSequence() != 1 {
			t.Errorf("last_sequence = %d, want 1", store.LastSequence())
		}
	})

	t.Run("malformed payload is acked and skipped", func(t *testing.T) {
		handler, store, emitter := newTestHandler(t)

		if err := handler.Handle(message.NewMessage("bad-1", []byte("{not json"))); err != nil {
			t.Fatalf("Handle() error = %v, want nil so the message is acked", err)
		}
		if err := handler.Handle(message.NewMessage("bad-2", []byte(`{"event_id":"x"}`))); err != nil {
			t.Fatalf("Handle() error = %v, want nil for invalid event", err)
		}

		customers, _ := store.Counts()
		if customers != 0 {
			t.Errorf("customers = %d, want 0 after malformed inputs", customers)
		}
		if emitter.feedback != 0 {
			t.Errorf("feedback emissions = %d, want 0", emitter.feedback)
		}
		if store.LastSequence() != 0 {
			t.Errorf("last_sequence = %d, want 0", store.LastSequence())
		}
	})
}
