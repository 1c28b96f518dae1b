// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/airlytix/promopilot/internal/eventstream"
	"github.com/airlytix/promopilot/internal/logging"
)

// RouterService adapts the Watermill router to suture.Service. The router
// returns nil on a clean Close; suture treats that as completion, so a
// context error is propagated instead to keep restart semantics intact.
type RouterService struct {
	router *eventstream.Router
}

// NewRouterService wraps the decision router for supervision.
func NewRouterService(router *eventstream.Router) *RouterService {
	return &RouterService{router: router}
}

// Serve runs the router until ctx is canceled.
func (s *RouterService) Serve(ctx context.Context) error {
	logging.Info().Msg("Decision router starting")
	err := s.router.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("decision router: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *RouterService) String() string { return "decision-router" }
