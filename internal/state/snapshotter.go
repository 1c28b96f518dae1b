// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package state

import (
	"context"
	"fmt"
	"time"

	"github.com/airlytix/promopilot/internal/logging"
	"github.com/airlytix/promopilot/internal/metrics"
)

// SnapshotSink persists snapshots to durable storage.
type SnapshotSink interface {
	Persist(snap *Snapshot) error
}

// SnapshotterConfig holds snapshotter settings.
type SnapshotterConfig struct {
	// Interval between periodic snapshots.
	Interval time.Duration

	// Retention is how long an inactive customer is kept before eviction.
	Retention time.Duration

	// LedgerTTL is how long applied event ids are remembered. Must cover
	// the transport's redelivery horizon.
	LedgerTTL time.Duration

	// MaxRetries bounds retries of a failed durable write.
	MaxRetries int

	// RetryBackoff is the wait between persistence retries.
	RetryBackoff time.Duration
}

// DefaultSnapshotterConfig returns production defaults.
func DefaultSnapshotterConfig() SnapshotterConfig {
	return SnapshotterConfig{
		Interval:     time.Minute,
		Retention:    30 * 24 * time.Hour,
		LedgerTTL:    4 * time.Hour,
		MaxRetries:   3,
		RetryBackoff: 2 * time.Second,
	}
}

// Snapshotter periodically evicts inactive state and persists a consistent
// snapshot. It implements suture.Service via Serve.
type Snapshotter struct {
	store  *Store
	sink   SnapshotSink
	config SnapshotterConfig
	clock  func() time.Time
}

// NewSnapshotter creates a snapshotter over the given store and sink.
func NewSnapshotter(store *Store, sink SnapshotSink, cfg SnapshotterConfig) *Snapshotter {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	return &Snapshotter{store: store, sink: sink, config: cfg, clock: time.Now}
}

// Serve runs periodic snapshots until ctx is canceled, then flushes a final
// snapshot so a graceful shutdown never loses committed state.
func (s *Snapshotter) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(ctx); err != nil {
				logging.Error().Err(err).Msg("Final snapshot flush failed")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.snapshotOnce(ctx); err != nil {
				logging.Error().Err(err).Msg("Periodic snapshot failed after retries")
			}
		}
	}
}

// Flush takes and persists one snapshot immediately. Used on shutdown.
func (s *Snapshotter) Flush(ctx context.Context) error {
	return s.snapshotOnce(ctx)
}

func (s *Snapshotter) snapshotOnce(ctx context.Context) error {
	now := s.clock()

	if s.config.Retention > 0 {
		evicted := s.store.EvictInactive(now, s.config.Retention, s.config.LedgerTTL)
		if evicted > 0 {
			logging.Info().Int("evicted", evicted).Msg("Evicted inactive customers")
		}
	}

	snap := s.store.TakeSnapshot(now)
	start := time.Now()

	var err error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.config.RetryBackoff):
			case <-ctx.Done():
				// Shutdown path: keep trying without waiting so the final
				// flush still has a chance to land.
			}
		}
		if err = s.sink.Persist(snap); err == nil {
			break
		}
		logging.Warn().Err(err).Int("attempt", attempt+1).Msg("Snapshot persistence failed, retrying")
	}

	metrics.RecordSnapshot(start, err)
	if err != nil {
		return fmt.Errorf("persist snapshot after %d retries: %w", s.config.MaxRetries, err)
	}

	customers, campaigns := s.store.Counts()
	logging.Debug().
		Int("customers", customers).
		Int("campaigns", campaigns).
		Uint64("last_sequence", snap.LastSequence).
		Msg("Snapshot persisted")
	return nil
}
