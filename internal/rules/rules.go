// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

// Package rules implements the probability-adjustment model. It is a pure
// function over (route, time, prior exposure history, parameters); all state
// and all randomness live elsewhere.
package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/airlytix/promopilot/internal/events"
)

// DefaultRouteKey is the fallback key in the baseline table for routes with
// no explicit entry.
const DefaultRouteKey = "DEFAULT"

// fatigueThreshold is the exposure count above which the fatigue penalty
// applies.
const fatigueThreshold = 2

// Params holds the rule parameters, supplied at startup and immutable for
// the duration of a run.
type Params struct {
	PromoUplift          float64 `koanf:"promo_uplift"`
	FatiguePenalty       float64 `koanf:"fatigue_penalty"`
	DecayFactor          float64 `koanf:"decay_factor"`
	CooldownMinutes      float64 `koanf:"cooldown_minutes"`
	FatigueWindowMinutes float64 `koanf:"fatigue_window_minutes"`
	MinProb              float64 `koanf:"min_prob"`
	MaxProb              float64 `koanf:"max_prob"`
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.PromoUplift < 0 || p.PromoUplift > 1 {
		return fmt.Errorf("promo_uplift must be in [0,1], got %v", p.PromoUplift)
	}
	if p.FatiguePenalty < 0 || p.FatiguePenalty > 1 {
		return fmt.Errorf("fatigue_penalty must be in [0,1], got %v", p.FatiguePenalty)
	}
	if p.DecayFactor <= 0 || p.DecayFactor > 1 {
		return fmt.Errorf("decay_factor must be in (0,1], got %v", p.DecayFactor)
	}
	if p.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown_minutes must be non-negative, got %v", p.CooldownMinutes)
	}
	if p.FatigueWindowMinutes <= 0 {
		return fmt.Errorf("fatigue_window_minutes must be positive, got %v", p.FatigueWindowMinutes)
	}
	if p.MinProb < 0 || p.MaxProb > 1 || p.MinProb > p.MaxProb {
		return fmt.Errorf("probability bounds [%v,%v] invalid", p.MinProb, p.MaxProb)
	}
	return nil
}

// FatigueWindow returns the fatigue window as a duration.
func (p Params) FatigueWindow() time.Duration {
	return time.Duration(p.FatigueWindowMinutes * float64(time.Minute))
}

// BaselineTable maps route codes (e.g. "JFK-LAX") to baseline booking
// probabilities. It is externally configured and read-only to the engine.
type BaselineTable map[string]float64

// Lookup returns the baseline probability for a route, falling back to the
// DEFAULT entry, then to zero when no DEFAULT is configured.
func (t BaselineTable) Lookup(route string) float64 {
	if p, ok := t[route]; ok {
		return p
	}
	return t[DefaultRouteKey]
}

// Validate checks that every baseline is a probability.
func (t BaselineTable) Validate() error {
	for route, p := range t {
		if p < 0 || p > 1 {
			return fmt.Errorf("baseline for %s must be in [0,1], got %v", route, p)
		}
	}
	return nil
}

// Engine evaluates the adjustment rules. Deterministic and side-effect-free.
type Engine struct {
	baselines BaselineTable
	params    Params
}

// NewEngine creates a rule engine over the given baseline table and
// parameters.
func NewEngine(baselines BaselineTable, params Params) *Engine {
	return &Engine{baselines: baselines, params: params}
}

// Params returns the engine's rule parameters.
func (e *Engine) Params() Params {
	return e.params
}

// AdjustedProbability computes the adjusted booking probability for one
// promotion exposure, using state as it was before the exposure is recorded.
//
// The model:
//   - baseline: route lookup with DEFAULT fallback
//   - fatigue: flat penalty once exposures in the trailing window exceed 2
//   - uplift: halved while inside the cooldown window, then scaled by
//     decay^minutesSinceLastPromo
//   - result clamped to [MinProb, MaxProb]
//
// When lastPromo is nil there is no dampening or decay and the explanation
// reports minutes_since_last_promo as absent.
func (e *Engine) AdjustedProbability(route string, now time.Time, lastPromo *time.Time, exposuresInWindow int) (float64, events.Explanation) {
	baseline := e.baselines.Lookup(route)

	var fatigue float64
	if exposuresInWindow > fatigueThreshold {
		fatigue = e.params.FatiguePenalty
	}

	uplift := e.params.PromoUplift
	expl := events.Explanation{
		BaselineProb:      baseline,
		Fatigue:           fatigue,
		DecayFactor:       e.params.DecayFactor,
		ExposuresInWindow: exposuresInWindow,
	}

	if lastPromo != nil {
		minutes := now.Sub(*lastPromo).Minutes()
		if minutes < e.params.CooldownMinutes {
			uplift *= 0.5
			expl.CooldownApplied = true
		}
		uplift *= math.Pow(e.params.DecayFactor, minutes)
		expl.MinutesSinceLastPromo = &minutes
	}

	adjusted := clamp(baseline+uplift-fatigue, e.params.MinProb, e.params.MaxProb)

	expl.Uplift = uplift
	expl.AdjustedProb = adjusted
	return adjusted, expl
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
