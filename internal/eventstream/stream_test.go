// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package eventstream

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
)

type fakeStream struct {
	jetstream.Stream
}

type fakeJetStream struct {
	existing map[string]bool
	created  []jetstream.StreamConfig
	updated  []jetstream.StreamConfig
}

func (f *fakeJetStream) Stream(_ context.Context, name string) (jetstream.Stream, error) {
	if f.existing[name] {
		return &fakeStream{}, nil
	}
	return nil, jetstream.ErrStreamNotFound
}

func (f *fakeJetStream) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.created = append(f.created, cfg)
	if f.existing == nil {
		f.existing = make(map[string]bool)
	}
	f.existing[cfg.Name] = true
	return &fakeStream{}, nil
}

func (f *fakeJetStream) UpdateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.updated = append(f.updated, cfg)
	return &fakeStream{}, nil
}

func TestEnsureStream(t *testing.T) {
	t.Run("creates a missing stream with durable settings", func(t *testing.T) {
		js := &fakeJetStream{}
		provisioner, err := NewStreamProvisioner(js, DefaultStreamConfig())
		if err != nil {
			t.Fatalf("NewStreamProvisioner() error = %v", err)
		}

		if _, err := provisioner.EnsureStream(context.Background()); err != nil {
			t.Fatalf("EnsureStream() error = %v", err)
		}
		if len(js.created) != 1 {
			t.Fatalf("created %d streams, want 1", len(js.created))
		}

		cfg := js.created[0]
		if cfg.Name != "PROMO" {
			t.Errorf("stream name = %s, want PROMO", cfg.Name)
		}
		if len(cfg.Subjects) != 1 || cfg.Subjects[0] != "promo.>" {
			t.Errorf("subjects = %v, want [promo.>]", cfg.Subjects)
		}
		if cfg.Storage != jetstream.FileStorage {
			t.Error("stream must use file storage for durability")
		}
		if cfg.Duplicates == 0 {
			t.Error("duplicate window must be set for broker-side dedup")
		}
	})

	t.Run("updates an existing stream instead of failing", func(t *testing.T) {
		js := &fakeJetStream{existing: map[string]bool{"PROMO": true}}
		provisioner, err := NewStreamProvisioner(js, DefaultStreamConfig())
		if err != nil {
			t.Fatalf("NewStreamProvisioner() error = %v", err)
		}

		if _, err := provisioner.EnsureStream(context.Background()); err != nil {
			t.Fatalf("EnsureStream() error = %v", err)
		}
		if len(js.created) != 0 || len(js.updated) != 1 {
			t.Errorf("created %d, updated %d; want 0 created, 1 updated", len(js.created), len(js.updated))
		}
	})

	t.Run("repeated calls are idempotent", func(t *testing.T) {
		js := &fakeJetStream{}
		provisioner, _ := NewStreamProvisioner(js, DefaultStreamConfig())

		for i := 0; i < 3; i++ {
			if _, err := provisioner.EnsureStream(context.Background()); err != nil {
				t.Fatalf("EnsureStream() call %d error = %v", i, err)
			}
		}
		if len(js.created) != 1 {
			t.Errorf("created %d streams across repeated calls, want 1", len(js.created))
		}
	})

	t.Run("nil jetstream context rejected", func(t *testing.T) {
		if _, err := NewStreamProvisioner(nil, DefaultStreamConfig()); err == nil {
			t.Error("NewStreamProvisioner(nil) should fail")
		}
	})
}
