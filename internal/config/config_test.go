// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/airlytix/promopilot/internal/rules"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults when nothing is configured", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Rules.PromoUplift != 0.15 {
			t.Errorf("promo_uplift = %v, want default 0.15", cfg.Rules.PromoUplift)
		}
		if cfg.Server.Port != 8087 {
			t.Errorf("port = %d, want default 8087", cfg.Server.Port)
		}
		if !cfg.NATS.EmbeddedServer {
			t.Error("embedded server should default to true")
		}
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("RULES_PROMO_UPLIFT", "0.25")
		t.Setenv("HTTP_PORT", "9090")
		t.Setenv("NATS_DURABLE_NAME", "custom-decider")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Rules.PromoUplift != 0.25 {
			t.Errorf("promo_uplift = %v, want 0.25", cfg.Rules.PromoUplift)
		}
		if cfg.Server.Port != 9090 {
			t.Errorf("port = %d, want 9090", cfg.Server.Port)
		}
		if cfg.NATS.DurableName != "custom-decider" {
			t.Errorf("durable_name = %s, want custom-decider", cfg.NATS.DurableName)
		}
	})

	t.Run("yaml file overrides defaults, env overrides file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		content := []byte("rules:\n  promo_uplift: 0.20\n  decay_factor: 0.95\nbaselines:\n  DEFAULT: 0.05\n  JFK-LAX: 0.08\n")
		if err := os.WriteFile(path, content, 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv("CONFIG_PATH", path)
		t.Setenv("RULES_PROMO_UPLIFT", "0.30")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Rules.PromoUplift != 0.30 {
			t.Errorf("promo_uplift = %v, want env value 0.30", cfg.Rules.PromoUplift)
		}
		if cfg.Rules.DecayFactor != 0.95 {
			t.Errorf("decay_factor = %v, want file value 0.95", cfg.Rules.DecayFactor)
		}
		if cfg.Baselines["JFK-LAX"] != 0.08 {
			t.Errorf("baseline JFK-LAX = %v, want 0.08", cfg.Baselines["JFK-LAX"])
		}
	})

	t.Run("invalid parameter rejected at load", func(t *testing.T) {
		t.Setenv("RULES_DECAY_FACTOR", "1.5")
		if _, err := Load(); err == nil {
			t.Error("Load() accepted decay_factor 1.5")
		}
	})
}

func TestValidate(t *testing.T) {
	valid := defaultConfig()

	t.Run("missing DEFAULT baseline", func(t *testing.T) {
		cfg := *valid
		cfg.Baselines = rules.BaselineTable{"JFK-LAX": 0.08}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() accepted a table without DEFAULT")
		}
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := *valid
		cfg.Server.Port = 70000
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() accepted port 70000")
		}
	})

	t.Run("ledger ttl must cover the duplicate window", func(t *testing.T) {
		cfg := *valid
		cfg.Snapshot.LedgerTTL = time.Minute
		cfg.NATS.DuplicateWindow = 2 * time.Minute
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() accepted ledger_ttl below 2x duplicate window")
		}
	})

	t.Run("external nats requires a url", func(t *testing.T) {
		cfg := *valid
		cfg.NATS.EmbeddedServer = false
		cfg.NATS.URL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() accepted external mode without a url")
		}
	})
}

func TestEnvTransformIgnoresUnmappedVariables(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("envTransformFunc(PATH) = %q, want empty", got)
	}
	if got := envTransformFunc("NATS_URL"); got != "nats.url" {
		t.Errorf("envTransformFunc(NATS_URL) = %q, want nats.url", got)
	}
}
