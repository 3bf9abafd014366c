// Package consumer ingests queue-borne uplink envelopes through the webhook
// pipeline, so gateway bridges can publish to RabbitMQ instead of HTTP.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ariot.dev/platform/internal/pipeline"
	"ariot.dev/platform/pkg/metrics"
	"ariot.dev/platform/pkg/mq"
)

// consumeRetryInterval paces the wait for the MQ client's first connection.
const consumeRetryInterval = 500 * time.Millisecond

const consumeRetryAttempts = 20

// Envelope is the queue message format: the integration slug plus the raw
// payload exactly as a webhook body would carry it.
type Envelope struct {
	Slug    string          `json:"slug"`
	Payload json.RawMessage `json:"payload"`
}

// Consumer consumes uplink envelopes from RabbitMQ and runs them through the
// decoding pipeline.
type Consumer struct {
	logger    *slog.Logger
	pipeline  *pipeline.Pipeline
	mqClient  mq.ClientInterface
	ownsMQ    bool
	queueName string
	metrics   *metrics.MQMetrics // optional
	done      chan struct{}
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger   *slog.Logger
	Pipeline *pipeline.Pipeline

	// RabbitMQURL and QueueName configure the owned MQ client. Ignored
	// when Client is set.
	RabbitMQURL string
	QueueName   string

	// Client overrides the MQ connection.
	Client mq.ClientInterface

	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.MQMetrics
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}

	client := cfg.Client
	ownsMQ := false
	if client == nil {
		if cfg.RabbitMQURL == "" {
			return nil, errors.New("rabbitmq URL cannot be empty")
		}
		if cfg.QueueName == "" {
			return nil, errors.New("queue name cannot be empty")
		}
		owned := mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger)
		if cfg.Metrics != nil {
			owned.SetMetrics(cfg.Metrics)
		}
		client = owned
		ownsMQ = true
	}

	return &Consumer{
		logger:    cfg.Logger,
		pipeline:  cfg.Pipeline,
		mqClient:  client,
		ownsMQ:    ownsMQ,
		queueName: cfg.QueueName,
		metrics:   cfg.Metrics,
		done:      make(chan struct{}),
	}, nil
}

// Start begins consuming envelopes from RabbitMQ.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting consumer")

	// The MQ client connects in the background; wait for the first
	// successful consume registration.
	var deliveries <-chan amqp.Delivery
	var err error
	for attempt := 0; attempt < consumeRetryAttempts; attempt++ {
		deliveries, err = c.mqClient.Consume()
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(consumeRetryInterval):
		}
	}
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started, waiting for envelopes")

	go c.processMessages(ctx, deliveries)

	return nil
}

// processMessages processes incoming envelopes from the deliveries channel.
func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping envelope processing")
			close(c.done)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				close(c.done)
				return
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery runs a single envelope through the pipeline. Terminal
// pipeline outcomes ack the message: the audit log already records rejected
// payloads, so redelivery would only duplicate the entry. Only a system
// error (typically a lost database) requeues.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var envelope Envelope
	if err := json.Unmarshal(delivery.Body, &envelope); err != nil {
		c.logger.Error("failed to unmarshal envelope", "error", err)
		c.trackFailure("malformed_envelope")
		// A malformed envelope never gets better; drop it.
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	result := c.pipeline.Process(ctx, envelope.Slug, envelope.Payload)

	if result.Outcome == pipeline.OutcomeSystemError {
		c.logger.Error("envelope processing failed, requeueing",
			"slug", envelope.Slug,
			"error", result.Err,
		)
		c.trackFailure("system_error")
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
		return
	}

	if c.metrics != nil {
		c.metrics.MessagesConsumed.WithLabelValues(c.queueName).Inc()
	}

	c.logger.Debug("envelope processed",
		"slug", result.Slug,
		"outcome", result.Outcome,
	)
}

func (c *Consumer) trackFailure(reason string) {
	if c.metrics != nil {
		c.metrics.ConsumptionFailures.WithLabelValues(c.queueName, reason).Inc()
	}
}

// Stop stops the consumer and closes the MQ client if it owns one.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumer")

	if c.ownsMQ {
		if err := c.mqClient.Close(); err != nil {
			return fmt.Errorf("failed to close mq client: %w", err)
		}
	}

	// Wait for envelope processing to complete
	<-c.done

	c.logger.Info("consumer stopped")
	return nil
}
