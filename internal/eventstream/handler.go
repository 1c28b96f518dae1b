// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package eventstream

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/airlytix/promopilot/internal/engine"
	"github.com/airlytix/promopilot/internal/events"
	"github.com/airlytix/promopilot/internal/logging"
	"github.com/airlytix/promopilot/internal/metrics"
	"github.com/airlytix/promopilot/internal/state"
)

// PromotionHandler consumes inbound promotion events and feeds them to the
// decision engine. Malformed payloads are counted, logged, and acked so
// they never block the stream; decision failures are absorbed by the
// engine itself.
type PromotionHandler struct {
	decider    *engine.Decider
	store      *state.Store
	serializer *events.Serializer
}

// NewPromotionHandler creates the decision consumer handler.
func NewPromotionHandler(decider *engine.Decider, store *state.Store) *PromotionHandler {
	return &PromotionHandler{
		decider:    decider,
		store:      store,
		serializer: events.NewSerializer(),
	}
}

// Handle implements message.NoPublishHandlerFunc. A nil return acks the
// message; only engine-internal errors (currently none) would nack and
// trigger the router's retry chain.
func (h *PromotionHandler) Handle(msg *message.Message) error {
	event, err := h.serializer.UnmarshalPromotion(msg.Payload)
	if err != nil {
		metrics.EventsMalformed.Inc()
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Skipping malformed promotion event")
		return nil // Ack: a bad payload never gets better on redelivery
	}

	metrics.EventsReceived.WithLabelValues(event.Segment).Inc()

	ctx := msg.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := h.decider.Process(ctx, event); err != nil {
		return err
	}

	// Count of applied inbound events, carried into snapshots so restores
	// can be correlated with stream position.
	h.store.IncrementSequence()
	return nil
}

// Register wires the handler onto the router against the inbound wildcard
// topic.
func (h *PromotionHandler) Register(r *Router, sub *Subscriber) *message.Handler {
	return r.AddConsumerHandler(
		"promotion_decider",
		events.SubjectPromotionAll,
		sub.WatermillSubscriber(),
		h.Handle,
	)
}
