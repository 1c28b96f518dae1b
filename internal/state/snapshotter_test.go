// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingSink struct {
	snapshots []*Snapshot
	failures  int
}

func (r *recordingSink) Persist(snap *Snapshot) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("disk unavailable")
	}
	r.snapshots = append(r.snapshots, snap)
	return nil
}

func TestSnapshotterFlush(t *testing.T) {
	t.Run("flush persists current state", func(t *testing.T) {
		store := NewStore()
		store.RecordPromo("ev-1", "cust-1", "promo-1", baseTime)

		sink := &recordingSink{}
		snapshotter := NewSnapshotter(store, sink, SnapshotterConfig{
			Interval:     time.Minute,
			Retention:    30 * 24 * time.Hour,
			LedgerTTL:    4 * time.Hour,
			MaxRetries:   3,
			RetryBackoff: time.Millisecond,
		})

		if err := snapshotter.Flush(context.Background()); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		if len(sink.snapshots) != 1 {
			t.Fatalf("persisted %d snapshots, want 1", len(sink.snapshots))
		}
		if _, ok := sink.snapshots[0].Customers["cust-1"]; !ok {
			t.Error("snapshot missing customer state")
		}
	})

	t.Run("transient persist failures are retried", func(t *testing.T) {
		store := NewStore()
		sink := &recordingSink{failures: 2}
		snapshotter := NewSnapshotter(store, sink, SnapshotterConfig{
			Interval:     time.Minute,
			MaxRetries:   3,
			RetryBackoff: time.Millisecond,
		})

		if err := snapshotter.Flush(context.Background()); err != nil {
			t.Fatalf("Flush() error = %v, want success after retries", err)
		}
		if len(sink.snapshots) != 1 {
			t.Errorf("persisted %d snapshots, want 1", len(sink.snapshots))
		}
	})

	t.Run("retry exhaustion reports an error", func(t *testing.T) {
		store := NewStore()
		sink := &recordingSink{failures: 10}
		snapshotter := NewSnapshotter(store, sink, SnapshotterConfig{
			Interval:     time.Minute,
			MaxRetries:   2,
			RetryBackoff: time.Millisecond,
		})

		if err := snapshotter.Flush(context.Background()); err == nil {
			t.Error("Flush() = nil, want error after exhausting retries")
		}
	})

	t.Run("flush evicts inactive customers first", func(t *testing.T) {
		store := NewStore()
		store.RecordPromo("ev-old", "cust-old", "promo-1", baseTime.Add(-40*24*time.Hour))

		sink := &recordingSink{}
		snapshotter := NewSnapshotter(store, sink, SnapshotterConfig{
			Interval:     time.Minute,
			Retention:    30 * 24 * time.Hour,
			LedgerTTL:    4 * time.Hour,
			MaxRetries:   1,
			RetryBackoff: time.Millisecond,
		})
		snapshotter.clock = func() time.Time { return baseTime }

		if err := snapshotter.Flush(context.Background()); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		if len(sink.snapshots[0].Customers) != 0 {
			t.Errorf("snapshot kept %d customers, want 0 after eviction", len(sink.snapshots[0].Customers))
		}
	})
}

func TestSnapshotterServeFlushesOnShutdown(t *testing.T) {
	store := NewStore()
	store.RecordPromo("ev-1", "cust-1", "promo-1", baseTime)

	sink := &recordingSink{}
	snapshotter := NewSnapshotter(store, sink, SnapshotterConfig{
		Interval:     time.Hour, // Never ticks during the test
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- snapshotter.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	if len(sink.snapshots) != 1 {
		t.Errorf("final flush persisted %d snapshots, want 1", len(sink.snapshots))
	}
}
