// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package eventstream

import "errors"

var (
	// ErrPublisherClosed is returned when publishing after Close.
	ErrPublisherClosed = errors.New("publisher is closed")

	// ErrServerNotReady is returned when the embedded NATS server does not
	// accept connections within the startup deadline.
	ErrServerNotReady = errors.New("embedded nats server not ready for connections")
)
