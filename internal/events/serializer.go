// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package events

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Serializer handles event encoding/decoding for transport messages.
// Marshal validates before encoding so malformed events never reach the
// wire; Unmarshal validates after decoding so malformed inbound payloads
// are rejected at the boundary.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// MarshalPromotion encodes a promotion event to JSON.
func (s *Serializer) MarshalPromotion(event *PromotionEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate promotion event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal promotion event: %w", err)
	}
	return data, nil
}

// UnmarshalPromotion decodes and validates a promotion event.
func (s *Serializer) UnmarshalPromotion(data []byte) (*PromotionEvent, error) {
	var event PromotionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal promotion event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate promotion event: %w", err)
	}
	return &event, nil
}

// MarshalFeedback encodes a feedback event to JSON.
func (s *Serializer) MarshalFeedback(event *FeedbackEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate feedback event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal feedback event: %w", err)
	}
	return data, nil
}

// UnmarshalFeedback decodes and validates a feedback event.
func (s *Serializer) UnmarshalFeedback(data []byte) (*FeedbackEvent, error) {
	var event FeedbackEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal feedback event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate feedback event: %w", err)
	}
	return &event, nil
}

// MarshalBooking encodes a booking event to JSON.
func (s *Serializer) MarshalBooking(event *BookingEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate booking event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal booking event: %w", err)
	}
	return data, nil
}

// UnmarshalBooking decodes and validates a booking event.
func (s *Serializer) UnmarshalBooking(data []byte) (*BookingEvent, error) {
	var event BookingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal booking event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate booking event: %w", err)
	}
	return &event, nil
}
