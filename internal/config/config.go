// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

// Package config loads and validates application configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//  1. Environment variables
//  2. Optional YAML config file
//  3. Built-in defaults
//
// RuleParameters and the route baseline table are supplied here at startup
// and are immutable for the duration of a run.
package config

import (
	"fmt"
	"time"

	"github.com/airlytix/promopilot/internal/rules"
)

// Config is the root application configuration.
type Config struct {
	NATS      NATSConfig          `koanf:"nats"`
	Rules     rules.Params        `koanf:"rules"`
	Baselines rules.BaselineTable `koanf:"baselines"`
	Snapshot  SnapshotConfig      `koanf:"snapshot"`
	Engine    EngineConfig        `koanf:"engine"`
	Server    ServerConfig        `koanf:"server"`
	Logging   LoggingConfig       `koanf:"logging"`
}

// NATSConfig holds event transport settings.
type NATSConfig struct {
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	StreamRetentionDays int           `koanf:"stream_retention_days"`
	DuplicateWindow     time.Duration `koanf:"duplicate_window"`
	DurableName         string        `koanf:"durable_name"`
	QueueGroup          string        `koanf:"queue_group"`

	// Watermill router middleware settings
	RouterRetryCount           int           `koanf:"router_retry_count"`
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval"`
	RouterPoisonQueueEnabled   bool          `koanf:"router_poison_queue_enabled"`
	RouterCloseTimeout         time.Duration `koanf:"router_close_timeout"`
}

// SnapshotConfig holds durable snapshot settings.
type SnapshotConfig struct {
	Dir           string        `koanf:"dir"`
	Interval      time.Duration `koanf:"interval"`
	RetentionDays int           `koanf:"retention_days"`
	LedgerTTL     time.Duration `koanf:"ledger_ttl"`
	MaxRetries    int           `koanf:"max_retries"`
	RetryBackoff  time.Duration `koanf:"retry_backoff"`
}

// EngineConfig holds decision engine settings.
type EngineConfig struct {
	// Seed for the stochastic booking trial. 0 seeds from wall clock;
	// any other value makes decision outcomes reproducible.
	Seed             int64         `koanf:"seed"`
	MaxEmitRetries   int           `koanf:"max_emit_retries"`
	EmitRetryBackoff time.Duration `koanf:"emit_retry_backoff"`
}

// ServerConfig holds the operational HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for errors a run cannot recover from.
func (c *Config) Validate() error {
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if err := c.Baselines.Validate(); err != nil {
		return fmt.Errorf("baselines: %w", err)
	}
	if _, ok := c.Baselines[rules.DefaultRouteKey]; !ok {
		return fmt.Errorf("baselines: %s entry is required", rules.DefaultRouteKey)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Server.Port)
	}
	if c.Snapshot.Dir == "" {
		return fmt.Errorf("snapshot: dir is required")
	}
	if c.Snapshot.Interval <= 0 {
		return fmt.Errorf("snapshot: interval must be positive")
	}
	if c.Snapshot.LedgerTTL < 2*c.NATS.DuplicateWindow {
		return fmt.Errorf("snapshot: ledger_ttl %v must be at least twice the duplicate window %v",
			c.Snapshot.LedgerTTL, c.NATS.DuplicateWindow)
	}
	if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("nats: url is required when embedded_server is disabled")
	}
	return nil
}
