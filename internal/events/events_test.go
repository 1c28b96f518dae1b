// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package events

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validPromotion() *PromotionEvent {
	return &PromotionEvent{
		SchemaVersion: SchemaVersion,
		EventID:       "ev-1",
		CustomerID:    "cust-1",
		PromoID:       "promo-1",
		Route:         "JFK-LAX",
		FareClass:     "Y",
		Segment:       "leisure",
		EventTS:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPromotionEventValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PromotionEvent)
		field  string
	}{
		{"missing event id", func(e *PromotionEvent) { e.EventID = "" }, "event_id"},
		{"missing customer id", func(e *PromotionEvent) { e.CustomerID = "" }, "customer_id"},
		{"missing promo id", func(e *PromotionEvent) { e.PromoID = "" }, "promo_id"},
		{"missing route", func(e *PromotionEvent) { e.Route = "" }, "route"},
		{"zero timestamp", func(e *PromotionEvent) { e.EventTS = time.Time{} }, "event_ts"},
	}

	if err := validPromotion().Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validPromotion()
			tt.mutate(ev)
			err := ev.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("Validate() error = %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestPromotionEventTopic(t *testing.T) {
	ev := validPromotion()
	if got := ev.Topic(); got != "promo.exposure.leisure" {
		t.Errorf("Topic() = %s, want promo.exposure.leisure", got)
	}

	ev.Segment = ""
	if got := ev.Topic(); got != "promo.exposure.default" {
		t.Errorf("Topic() without segment = %s, want promo.exposure.default", got)
	}
}

func TestSerializerRejectsInvalid(t *testing.T) {
	s := NewSerializer()

	t.Run("marshal validates first", func(t *testing.T) {
		ev := validPromotion()
		ev.CustomerID = ""
		if _, err := s.MarshalPromotion(ev); err == nil {
			t.Error("MarshalPromotion accepted an invalid event")
		}
	})

	t.Run("unmarshal rejects bad json", func(t *testing.T) {
		if _, err := s.UnmarshalPromotion([]byte("{not json")); err == nil {
			t.Error("UnmarshalPromotion accepted malformed payload")
		}
	})

	t.Run("unmarshal validates decoded event", func(t *testing.T) {
		if _, err := s.UnmarshalPromotion([]byte(`{"event_id":"ev-1"}`)); err == nil {
			t.Error("UnmarshalPromotion accepted an event missing required fields")
		}
	})
}

func TestSerializerRoundTrip(t *testing.T) {
	s := NewSerializer()

	data, err := s.MarshalPromotion(validPromotion())
	if err != nil {
		t.Fatalf("MarshalPromotion() error = %v", err)
	}
	got, err := s.UnmarshalPromotion(data)
	if err != nil {
		t.Fatalf("UnmarshalPromotion() error = %v", err)
	}
	if got.EventID != "ev-1" || got.Route != "JFK-LAX" || !got.EventTS.Equal(validPromotion().EventTS) {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestFeedbackEventOptionalMinutes(t *testing.T) {
	s := NewSerializer()
	ev := &FeedbackEvent{
		SchemaVersion: SchemaVersion,
		EventID:       "ev-1:feedback",
		CustomerID:    "cust-1",
		PromoID:       "promo-1",
		Route:         "JFK-LAX",
		BaselineProb:  0.08,
		AdjustedProb:  0.23,
		EventTS:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := s.MarshalFeedback(ev)
	if err != nil {
		t.Fatalf("MarshalFeedback() error = %v", err)
	}
	// Absent prior promo: the field must be omitted, not zero.
	if containsField(data, "minutes_since_last_promo") {
		t.Error("minutes_since_last_promo serialized despite being absent")
	}

	minutes := 10.0
	ev.MinutesSinceLastPromo = &minutes
	data, err = s.MarshalFeedback(ev)
	if err != nil {
		t.Fatalf("MarshalFeedback() error = %v", err)
	}
	got, err := s.UnmarshalFeedback(data)
	if err != nil {
		t.Fatalf("UnmarshalFeedback() error = %v", err)
	}
	if got.MinutesSinceLastPromo == nil || *got.MinutesSinceLastPromo != 10 {
		t.Errorf("minutes_since_last_promo = %v, want 10", got.MinutesSinceLastPromo)
	}
}

func containsField(data []byte, field string) bool {
	return strings.Contains(string(data), `"`+field+`"`)
}
