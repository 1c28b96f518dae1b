// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package main

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/airlytix/promopilot/internal/config"
	"github.com/airlytix/promopilot/internal/engine"
	"github.com/airlytix/promopilot/internal/eventstream"
	"github.com/airlytix/promopilot/internal/logging"
	"github.com/airlytix/promopilot/internal/state"
)

// natsComponents holds the transport components for lifecycle management.
type natsComponents struct {
	server      *eventstream.EmbeddedServer
	natsConn    *natsgo.Conn
	provisioner *eventstream.StreamProvisioner
	publisher   *eventstream.Publisher
	subscriber  *eventstream.Subscriber
	router      *eventstream.Router
}

// initNATS brings up the transport in dependency order: embedded server
// (optional), connection, stream provisioning, publisher, subscriber, and
// the decision router with its handler.
func initNATS(cfg *config.Config, decider *engine.Decider, store *state.Store) (*natsComponents, error) {
	components := &natsComponents{}

	var natsURL string
	if cfg.NATS.EmbeddedServer {
		serverCfg := eventstream.DefaultServerConfig()
		serverCfg.StoreDir = cfg.NATS.StoreDir
		serverCfg.JetStreamMaxMem = cfg.NATS.MaxMemory
		serverCfg.JetStreamMaxStore = cfg.NATS.MaxStore

		srv, err := eventstream.NewEmbeddedServer(serverCfg)
		if err != nil {
			return nil, err
		}
		components.server = srv
		natsURL = srv.ClientURL()
	} else {
		natsURL = cfg.NATS.URL
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		components.shutdown()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	components.natsConn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		components.shutdown()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := eventstream.DefaultStreamConfig()
	streamCfg.MaxAge = time.Duration(cfg.NATS.StreamRetentionDays) * 24 * time.Hour
	streamCfg.DuplicateWindow = cfg.NATS.DuplicateWindow

	provisioner, err := eventstream.NewStreamProvisioner(js, streamCfg)
	if err != nil {
		components.shutdown()
		return nil, fmt.Errorf("create stream provisioner: %w", err)
	}
	components.provisioner = provisioner

	stream, err := provisioner.EnsureStream(context.Background())
	if err != nil {
		components.shutdown()
		return nil, fmt.Errorf("ensure stream exists: %w", err)
	}
	streamInfo := stream.CachedInfo()
	logging.Info().
		Str("name", streamInfo.Config.Name).
		Strs("subjects", streamInfo.Config.Subjects).
		Dur("max_age", streamInfo.Config.MaxAge).
		Msg("JetStream stream ready")

	wmLogger := logging.NewWatermillAdapter()

	publisher, err := eventstream.NewPublisher(eventstream.DefaultPublisherConfig(natsURL), wmLogger)
	if err != nil {
		components.shutdown()
		return nil, err
	}
	publisher.SetCircuitBreaker(eventstream.NewCircuitBreaker(
		eventstream.DefaultCircuitBreakerConfig("promo-publisher")))
	components.publisher = publisher

	subscriberCfg := eventstream.DefaultSubscriberConfig(natsURL)
	subscriberCfg.DurableName = cfg.NATS.DurableName
	subscriberCfg.QueueGroup = cfg.NATS.QueueGroup

	subscriber, err := eventstream.NewSubscriber(subscriberCfg, wmLogger)
	if err != nil {
		components.shutdown()
		return nil, err
	}
	components.subscriber = subscriber

	routerCfg := eventstream.DefaultRouterConfig()
	routerCfg.RetryMaxRetries = cfg.NATS.RouterRetryCount
	routerCfg.RetryInitialInterval = cfg.NATS.RouterRetryInitialInterval
	routerCfg.CloseTimeout = cfg.NATS.RouterCloseTimeout
	if !cfg.NATS.RouterPoisonQueueEnabled {
		routerCfg.PoisonQueueTopic = ""
	}

	router, err := eventstream.NewRouter(routerCfg, publisher.WatermillPublisher(), wmLogger)
	if err != nil {
		components.shutdown()
		return nil, err
	}
	components.router = router

	handler := eventstream.NewPromotionHandler(decider, store)
	handler.Register(router, subscriber)

	return components, nil
}

// shutdown tears the transport down in reverse order. Safe to call on a
// partially initialized set.
func (c *natsComponents) shutdown() {
	if c.router != nil {
		if err := c.router.Close(); err != nil {
			logging.Error().Err(err).Msg("Router close failed")
		}
	}
	if c.subscriber != nil {
		if err := c.subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Subscriber close failed")
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Publisher close failed")
		}
	}
	if c.natsConn != nil {
		c.natsConn.Close()
	}
	if c.server != nil {
		c.server.Shutdown()
	}
}
