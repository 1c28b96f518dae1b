// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

// Package eventstream provides the NATS JetStream transport: an optional
// embedded server, stream provisioning, the resilient publisher for
// feedback and booking channels, the durable decision consumer, and the
// Watermill router that ties them together.
package eventstream

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/airlytix/promopilot/internal/logging"
)

// EmbeddedServer runs an in-process NATS server with JetStream enabled.
// Single-binary deployments use it instead of an external NATS cluster;
// the simulation then needs no infrastructure beyond its own data dir.
type EmbeddedServer struct {
	ns     *server.Server
	config ServerConfig
}

// NewEmbeddedServer creates and starts an embedded NATS server, blocking
// until it accepts client connections.
func NewEmbeddedServer(cfg ServerConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "promopilot-embedded",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.JetStreamMaxMem,
		JetStreamMaxStore:  cfg.JetStreamMaxStore,
		MaxPayload:         8 * 1024 * 1024, // 8MB
		NoSigs:             true,            // Shutdown is owned by the supervisor tree
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, ErrServerNotReady
	}

	logging.Info().
		Str("url", ns.ClientURL()).
		Str("store_dir", cfg.StoreDir).
		Msg("Embedded NATS server ready")

	return &EmbeddedServer{ns: ns, config: cfg}, nil
}

// ClientURL returns the URL clients should connect to.
func (e *EmbeddedServer) ClientURL() string {
	return e.ns.ClientURL()
}

// Shutdown stops the server and waits for it to finish.
func (e *EmbeddedServer) Shutdown() {
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
}
