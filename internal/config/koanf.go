// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/airlytix/promopilot/internal/rules"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/promopilot/config.yaml",
	"/etc/promopilot/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with sensible defaults, applied first and
// overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamRetentionDays: 7,
			DuplicateWindow:     2 * time.Minute,
			DurableName:         "promo-decider",
			QueueGroup:          "deciders",

			RouterRetryCount:           3,
			RouterRetryInitialInterval: 100 * time.Millisecond,
			RouterPoisonQueueEnabled:   true,
			RouterCloseTimeout:         30 * time.Second,
		},
		Rules: rules.Params{
			PromoUplift:          0.15,
			FatiguePenalty:       0.10,
			DecayFactor:          0.98,
			CooldownMinutes:      30,
			FatigueWindowMinutes: 120,
			MinProb:              0.01,
			MaxProb:              0.95,
		},
		Baselines: rules.BaselineTable{
			rules.DefaultRouteKey: 0.05,
		},
		Snapshot: SnapshotConfig{
			Dir:           "/data/promopilot/state",
			Interval:      time.Minute,
			RetentionDays: 30,
			LedgerTTL:     4 * time.Hour,
			MaxRetries:    3,
			RetryBackoff:  2 * time.Second,
		},
		Engine: EngineConfig{
			Seed:             0, // wall clock
			MaxEmitRetries:   3,
			EmitRetryBackoff: 200 * time.Millisecond,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8087,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
// defaults, then an optional YAML file, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// ENV > file > defaults. Names map via the explicit table below;
	// unmapped variables are ignored so unrelated environment noise never
	// pollutes the config.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, checking CONFIG_PATH first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Examples:
//   - NATS_URL -> nats.url
//   - RULES_PROMO_UPLIFT -> rules.promo_uplift
//   - SNAPSHOT_DIR -> snapshot.dir
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// NATS mappings
		"nats_url":              "nats.url",
		"nats_embedded":         "nats.embedded_server",
		"nats_store_dir":        "nats.store_dir",
		"nats_max_memory":       "nats.max_memory",
		"nats_max_store":        "nats.max_store",
		"nats_retention_days":   "nats.stream_retention_days",
		"nats_duplicate_window": "nats.duplicate_window",
		"nats_durable_name":     "nats.durable_name",
		"nats_queue_group":      "nats.queue_group",

		"nats_router_retry_count":    "nats.router_retry_count",
		"nats_router_retry_interval": "nats.router_retry_initial_interval",
		"nats_router_poison_enabled": "nats.router_poison_queue_enabled",
		"nats_router_close_timeout":  "nats.router_close_timeout",

		// Rule parameter mappings
		"rules_promo_uplift":           "rules.promo_uplift",
		"rules_fatigue_penalty":        "rules.fatigue_penalty",
		"rules_decay_factor":           "rules.decay_factor",
		"rules_cooldown_minutes":       "rules.cooldown_minutes",
		"rules_fatigue_window_minutes": "rules.fatigue_window_minutes",
		"rules_min_prob":               "rules.min_prob",
		"rules_max_prob":               "rules.max_prob",

		// Snapshot mappings
		"snapshot_dir":            "snapshot.dir",
		"snapshot_interval":       "snapshot.interval",
		"snapshot_retention_days": "snapshot.retention_days",
		"snapshot_ledger_ttl":     "snapshot.ledger_ttl",
		"snapshot_max_retries":    "snapshot.max_retries",
		"snapshot_retry_backoff":  "snapshot.retry_backoff",

		// Engine mappings
		"engine_seed":               "engine.seed",
		"engine_max_emit_retries":   "engine.max_emit_retries",
		"engine_emit_retry_backoff": "engine.emit_retry_backoff",

		// Server mappings
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
