// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package main

import (
	"context"
	"errors"
	"sync"

	"github.com/airlytix/promopilot/internal/engine"
	"github.com/airlytix/promopilot/internal/events"
)

var errEmitterUnbound = errors.New("emitter not bound yet")

// lateBoundEmitter defers the publisher binding until the transport is up.
// The decider must exist before the router handler is registered, but the
// publisher is only created during transport init; no event flows before
// bind because the router has not started.
type lateBoundEmitter struct {
	mu      sync.RWMutex
	emitter engine.Emitter
}

func (l *lateBoundEmitter) bind(e engine.Emitter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.emitter = e
}

func (l *lateBoundEmitter) EmitFeedback(ctx context.Context, event *events.FeedbackEvent) error {
	l.mu.RLock()
	e := l.emitter
	l.mu.RUnlock()
	if e == nil {
		return errEmitterUnbound
	}
	return e.EmitFeedback(ctx, event)
}

func (l *lateBoundEmitter) EmitBooking(ctx context.Context, event *events.BookingEvent) error {
	l.mu.RLock()
	e := l.emitter
	l.mu.RUnlock()
	if e == nil {
		return errEmitterUnbound
	}
	return e.EmitBooking(ctx, event)
}
