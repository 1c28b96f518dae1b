// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

// Package events defines the typed event variants exchanged with the
// promotion decision engine and their NATS subjects. Each variant is
// validated once, at the ingestion boundary; processing code can rely on
// mandatory fields being present.
package events

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version. Increment on breaking
// changes to any event variant.
const SchemaVersion = 1

// Subjects for inbound and outbound channels. Promotion events arrive on a
// per-segment subject so a future multi-worker deployment can partition by
// subject while keeping per-customer ordering inside one partition.
const (
	SubjectPromotionPrefix = "promo.exposure."
	SubjectPromotionAll    = "promo.exposure.>"
	SubjectFeedback        = "promo.feedback"
	SubjectBooking         = "promo.booking"
	SubjectPoison          = "promo.poison"
)

// StreamName is the JetStream stream holding all promotion subjects.
const StreamName = "PROMO"

// StreamSubjects lists the subjects captured by the stream.
var StreamSubjects = []string{"promo.>"}

// PromotionEvent is one promotion exposure shown to a customer.
type PromotionEvent struct {
	SchemaVersion int       `json:"schema_version,omitempty"`
	EventID       string    `json:"event_id"`
	CustomerID    string    `json:"customer_id"`
	PromoID       string    `json:"promo_id"`
	Route         string    `json:"route"`
	FareClass     string    `json:"fare_class"`
	Segment       string    `json:"segment"`
	EventTS       time.Time `json:"event_ts"`
}

// NewPromotionEvent creates a promotion event with a unique id and the
// current schema version.
func NewPromotionEvent(customerID, promoID, route string) *PromotionEvent {
	return &PromotionEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		CustomerID:    customerID,
		PromoID:       promoID,
		Route:         route,
		EventTS:       time.Now().UTC(),
	}
}

// Validate checks required fields.
func (e *PromotionEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.CustomerID == "" {
		return &ValidationError{Field: "customer_id", Message: "required"}
	}
	if e.PromoID == "" {
		return &ValidationError{Field: "promo_id", Message: "required"}
	}
	if e.Route == "" {
		return &ValidationError{Field: "route", Message: "required"}
	}
	if e.EventTS.IsZero() {
		return &ValidationError{Field: "event_ts", Message: "required"}
	}
	return nil
}

// Topic returns the NATS subject for this event.
// Format: promo.exposure.<segment>, with "default" when segment is unset.
func (e *PromotionEvent) Topic() string {
	segment := e.Segment
	if segment == "" {
		segment = "default"
	}
	return SubjectPromotionPrefix + segment
}

// Explanation carries every intermediate term of a probability adjustment
// so downstream consumers can audit the decision.
type Explanation struct {
	BaselineProb          float64  `json:"baseline_prob"`
	Uplift                float64  `json:"uplift"`
	Fatigue               float64  `json:"fatigue"`
	AdjustedProb          float64  `json:"adjusted_prob"`
	CooldownApplied       bool     `json:"cooldown_applied"`
	DecayFactor           float64  `json:"decay_factor"`
	ExposuresInWindow     int      `json:"exposures_in_window"`
	MinutesSinceLastPromo *float64 `json:"minutes_since_last_promo,omitempty"`
}

// BookingEvent is emitted when the stochastic trial results in a booking.
type BookingEvent struct {
	SchemaVersion int         `json:"schema_version,omitempty"`
	EventID       string      `json:"event_id"`
	CustomerID    string      `json:"customer_id"`
	Route         string      `json:"route"`
	PromoID       string      `json:"promo_id,omitempty"`
	BookingTS     time.Time   `json:"booking_ts"`
	Explanation   Explanation `json:"explanation"`
}

// Validate checks required fields.
func (e *BookingEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.CustomerID == "" {
		return &ValidationError{Field: "customer_id", Message: "required"}
	}
	if e.Route == "" {
		return &ValidationError{Field: "route", Message: "required"}
	}
	if e.BookingTS.IsZero() {
		return &ValidationError{Field: "booking_ts", Message: "required"}
	}
	return nil
}

// Topic returns the NATS subject for this event.
func (e *BookingEvent) Topic() string { return SubjectBooking }

// FeedbackEvent is emitted for every processed promotion event, whether or
// not a booking occurred.
type FeedbackEvent struct {
	SchemaVersion         int       `json:"schema_version,omitempty"`
	EventID               string    `json:"event_id"`
	CustomerID            string    `json:"customer_id"`
	PromoID               string    `json:"promo_id"`
	Route                 string    `json:"route"`
	BaselineProb          float64   `json:"baseline_prob"`
	AdjustedProb          float64   `json:"adjusted_prob"`
	Fatigue               float64   `json:"fatigue"`
	Uplift                float64   `json:"uplift"`
	MinutesSinceLastPromo *float64  `json:"minutes_since_last_promo,omitempty"`
	Booking               bool      `json:"booking"`
	EventTS               time.Time `json:"event_ts"`
}

// Validate checks required fields.
func (e *FeedbackEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.CustomerID == "" {
		return &ValidationError{Field: "customer_id", Message: "required"}
	}
	if e.PromoID == "" {
		return &ValidationError{Field: "promo_id", Message: "required"}
	}
	if e.Route == "" {
		return &ValidationError{Field: "route", Message: "required"}
	}
	return nil
}

// Topic returns the NATS subject for this event.
func (e *FeedbackEvent) Topic() string { return SubjectFeedback }

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
