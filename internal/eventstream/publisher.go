// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package eventstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/airlytix/promopilot/internal/events"
	"github.com/airlytix/promopilot/internal/metrics"
)

// Publisher wraps a Watermill NATS publisher with circuit breaker
// protection. It publishes feedback and booking events, satisfying the
// engine's Emitter interface.
//
// Outbound event ids are deterministic (derived from the triggering
// promotion event id), so they double as the Nats-Msg-Id and JetStream's
// duplicate window drops any re-publish after a crash-redelivery.
type Publisher struct {
	publisher      message.Publisher
	serializer     *events.Serializer
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
	mu             sync.RWMutex
	closed         bool
	logger         watermill.LoggerAdapter
}

// NewPublisher creates a resilient JetStream publisher. The stream must be
// provisioned before first publish; AutoProvision stays off.
func NewPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    cfg.EnableTrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{
		publisher:  pub,
		serializer: events.NewSerializer(),
		logger:     logger,
	}, nil
}

// SetCircuitBreaker configures the circuit breaker for publish operations.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

// NewCircuitBreaker builds a circuit breaker from config, suitable for
// SetCircuitBreaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[interface{}] {
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	})
}

// Publish sends a message to the topic with circuit breaker protection.
// The message UUID becomes the Nats-Msg-Id unless one is already set.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPublisherClosed
	}
	p.mu.RUnlock()

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	if p.circuitBreaker != nil {
		_, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return nil, p.publisher.Publish(topic, msg)
		})
		return err
	}
	return p.publisher.Publish(topic, msg)
}

// EmitFeedback publishes a feedback event to the feedback channel.
func (p *Publisher) EmitFeedback(ctx context.Context, event *events.FeedbackEvent) error {
	data, err := p.serializer.MarshalFeedback(event)
	if err != nil {
		return fmt.Errorf("serialize feedback event: %w", err)
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set("customer_id", event.CustomerID)
	msg.Metadata.Set("promo_id", event.PromoID)

	if err := p.Publish(ctx, events.SubjectFeedback, msg); err != nil {
		return err
	}
	metrics.EventsPublished.WithLabelValues("feedback").Inc()
	return nil
}

// EmitBooking publishes a booking event to the booking channel.
func (p *Publisher) EmitBooking(ctx context.Context, event *events.BookingEvent) error {
	data, err := p.serializer.MarshalBooking(event)
	if err != nil {
		return fmt.Errorf("serialize booking event: %w", err)
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set("customer_id", event.CustomerID)
	msg.Metadata.Set("promo_id", event.PromoID)

	if err := p.Publish(ctx, events.SubjectBooking, msg); err != nil {
		return err
	}
	metrics.EventsPublished.WithLabelValues("booking").Inc()
	return nil
}

// WatermillPublisher returns the underlying Watermill publisher for
// components that need the native interface (poison queue middleware).
func (p *Publisher) WatermillPublisher() message.Publisher {
	return p.publisher
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.publisher.Close()
}
