// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

// Command server runs the promotion decision pipeline: it consumes
// promotion exposure events from JetStream, evaluates the rule engine
// against in-memory customer state, runs the stochastic booking trial,
// and emits feedback and booking events. State is periodically
// snapshotted to BadgerDB and restored on startup.
package main

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airlytix/promopilot/internal/api"
	"github.com/airlytix/promopilot/internal/config"
	"github.com/airlytix/promopilot/internal/engine"
	"github.com/airlytix/promopilot/internal/logging"
	"github.com/airlytix/promopilot/internal/rules"
	"github.com/airlytix/promopilot/internal/state"
	"github.com/airlytix/promopilot/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet; stderr is all we have.
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("log_level", cfg.Logging.Level).
		Bool("embedded_nats", cfg.NATS.EmbeddedServer).
		Msg("PromoPilot starting")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("PromoPilot terminated")
	}
	logging.Info().Msg("PromoPilot shut down cleanly")
}

func run(cfg *config.Config) error {
	// Durable snapshot store. A corrupt snapshot is fatal by policy:
	// silently starting empty would double-apply the stream's history.
	db, err := state.OpenBadger(cfg.Snapshot.Dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Badger close failed")
		}
	}()
	badgerStore := state.NewBadgerSnapshotStore(db)

	store := state.NewStore()
	snap, err := badgerStore.Load()
	if err != nil {
		return err
	}
	if snap != nil {
		store.Restore(snap)
		customers, campaigns := store.Counts()
		logging.Info().
			Int("customers", customers).
			Int("campaigns", campaigns).
			Uint64("last_sequence", snap.LastSequence).
			Time("taken_at", snap.TakenAt).
			Msg("State restored from snapshot")
	} else {
		logging.Info().Msg("No snapshot found, starting with empty state")
	}

	ruleEngine := rules.NewEngine(cfg.Baselines, cfg.Rules)

	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	logging.Info().Int64("seed", seed).Msg("Stochastic trial source seeded")

	// Transport is wired before the decider's emitter exists, so the
	// decider is created first and handed to the handler inside initNATS.
	var decider *engine.Decider

	engineCfg := engine.Config{
		MaxEmitRetries:   cfg.Engine.MaxEmitRetries,
		EmitRetryBackoff: cfg.Engine.EmitRetryBackoff,
	}

	// initNATS needs the decider; the decider needs the publisher created
	// inside initNATS. Break the cycle with a late-bound emitter.
	emitter := &lateBoundEmitter{}
	decider = engine.NewDecider(store, ruleEngine, emitter, rng, engineCfg)

	components, err := initNATS(cfg, decider, store)
	if err != nil {
		return err
	}
	defer components.shutdown()
	emitter.bind(components.publisher)

	snapshotter := state.NewSnapshotter(store, badgerStore, state.SnapshotterConfig{
		Interval:     cfg.Snapshot.Interval,
		Retention:    time.Duration(cfg.Snapshot.RetentionDays) * 24 * time.Hour,
		LedgerTTL:    cfg.Snapshot.LedgerTTL,
		MaxRetries:   cfg.Snapshot.MaxRetries,
		RetryBackoff: cfg.Snapshot.RetryBackoff,
	})

	apiHandler := api.NewHandler(store, ruleEngine, components.router)
	apiRouter := api.NewRouter(apiHandler, api.RouterConfig{
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})
	httpServer := api.NewServer(api.ServerConfig{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Timeout: cfg.Server.Timeout,
	}, apiRouter)

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddStateService(snapshotter)
	tree.AddStreamService(supervisor.NewRouterService(components.router))
	tree.AddAPIService(httpServer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	stop()

	// The snapshotter flushes on context cancellation; wait for the tree
	// to wind down before closing the transport.
	select {
	case <-errCh:
	case <-time.After(30 * time.Second):
		if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
			for _, svc := range report {
				logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
			}
		}
	}

	return nil
}
