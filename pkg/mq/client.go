// Package mq provides a RabbitMQ client with automatic reconnection used to
// carry drive-test uplink envelopes between the simulator and the server.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"ariot.dev/platform/pkg/metrics"
)

// Client handles connection management, automatic reconnection, and provides
// methods for publishing and consuming uplink envelopes.
type Client struct {
	mu              sync.Mutex
	logger          *slog.Logger
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan struct{}
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	queueName       string
	ready           bool
	metrics         *metrics.MQMetrics // optional
}

const (
	// Delay before retrying after a failed connection attempt.
	reconnectDelay = 5 * time.Second

	// Delay before re-initializing the channel after a channel exception.
	reInitDelay = 2 * time.Second

	// Initial backoff delay for Publish retries.
	initialBackoff = 100 * time.Millisecond

	// Maximum backoff delay for Publish retries.
	maxBackoff = 10 * time.Second

	// Maximum number of retry attempts before giving up on a publish.
	maxRetryAttempts = 5
)

var (
	errNotConnected       = errors.New("not connected to a server")
	errAlreadyClosed      = errors.New("already closed: not connected to the server")
	errShutdown           = errors.New("client is shutting down")
	errMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// New creates a client for the named queue and starts connecting to addr in
// the background.
func New(queueName, addr string, logger *slog.Logger) *Client {
	client := &Client{
		logger:    logger,
		queueName: queueName,
		done:      make(chan struct{}),
	}
	go client.handleReconnect(addr)
	return client
}

// SetMetrics sets the metrics collector for this client. Call before the
// client starts moving messages.
func (c *Client) SetMetrics(m *metrics.MQMetrics) {
	c.metrics = m
}

// handleReconnect loops forever (re)establishing the connection after close
// notifications, until the client is shut down.
func (c *Client) handleReconnect(addr string) {
	for {
		c.setReady(false)
		c.logger.Info("attempting to connect", "queue", c.queueName)

		if c.metrics != nil {
			c.metrics.ReconnectAttempts.Inc()
		}

		conn, err := c.connect(addr)
		if err != nil {
			c.logger.Error("connection failed, retrying", "error", err)
			select {
			case <-c.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := c.handleReInit(conn); done {
			return
		}
	}
}

func (c *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		if c.metrics != nil {
			c.metrics.ConnectionStatus.Set(0)
		}
		return nil, err
	}

	c.changeConnection(conn)
	c.logger.Info("connected", "queue", c.queueName)

	if c.metrics != nil {
		c.metrics.ConnectionStatus.Set(1)
	}
	return conn, nil
}

// handleReInit re-initializes the channel after channel-level exceptions.
// Returns true when the client is shutting down.
func (c *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		c.setReady(false)

		if err := c.init(conn); err != nil {
			c.logger.Error("channel init failed, retrying", "error", err)
			select {
			case <-c.done:
				return true
			case <-c.notifyConnClose:
				c.logger.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-c.done:
			return true
		case <-c.notifyConnClose:
			c.logger.Info("connection closed, reconnecting")
			return false
		case <-c.notifyChanClose:
			c.logger.Info("channel closed, re-running init")
		}
	}
}

// init opens a confirm-mode channel and declares the queue.
func (c *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(
		c.queueName,
		true,  // durable: uplinks survive a broker restart
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return err
	}

	c.changeChannel(ch)
	c.setReady(true)
	c.logger.Info("client init done", "queue", c.queueName)
	return nil
}

func (c *Client) changeConnection(connection *amqp.Connection) {
	c.connection = connection
	c.notifyConnClose = make(chan *amqp.Error, 1)
	c.connection.NotifyClose(c.notifyConnClose)
}

func (c *Client) changeChannel(channel *amqp.Channel) {
	c.channel = channel
	c.notifyChanClose = make(chan *amqp.Error, 1)
	c.notifyConfirm = make(chan amqp.Confirmation, 1)
	c.channel.NotifyClose(c.notifyChanClose)
	c.channel.NotifyPublish(c.notifyConfirm)
}

func (c *Client) setReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

func (c *Client) isReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Publish pushes data onto the queue and waits for broker confirmation,
// retrying with exponential backoff while the client reconnects. After
// maxRetryAttempts failed attempts it returns a fatal error.
func (c *Client) Publish(ctx context.Context, data []byte) error {
	var timer *prometheus.Timer
	if c.metrics != nil {
		timer = prometheus.NewTimer(c.metrics.PushDuration.WithLabelValues(c.queueName))
		defer timer.ObserveDuration()
	}

	backoff := initialBackoff
	retries := 0

	wait := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return errShutdown
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			retries++
			return nil
		}
	}

	for {
		if retries >= maxRetryAttempts {
			c.logger.Error("publish giving up", "retries", retries)
			if c.metrics != nil {
				c.metrics.PushFailures.WithLabelValues(c.queueName, "max_retries_exceeded").Inc()
			}
			return errMaxRetriesExceeded
		}

		if !c.isReady() {
			c.logger.Info("not connected, waiting for reconnection",
				"backoff", backoff, "retries", retries)
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		if err := c.UnsafePublish(ctx, data); err != nil {
			c.logger.Error("publish failed, retrying", "error", err, "backoff", backoff)
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			if c.metrics != nil {
				c.metrics.PushFailures.WithLabelValues(c.queueName, "context_canceled").Inc()
			}
			return ctx.Err()
		case confirm := <-c.notifyConfirm:
			if confirm.Ack {
				if c.metrics != nil {
					c.metrics.MessagesPushed.WithLabelValues(c.queueName).Inc()
				}
				c.logger.Debug("publish confirmed",
					"delivery_tag", confirm.DeliveryTag, "retries", retries)
				return nil
			}
			c.logger.Warn("publish not acknowledged, retrying",
				"delivery_tag", confirm.DeliveryTag)
			if err := wait(); err != nil {
				return err
			}
		}
	}
}

// UnsafePublish pushes to the queue without waiting for confirmation.
func (c *Client) UnsafePublish(ctx context.Context, data []byte) error {
	if !c.isReady() {
		return errNotConnected
	}

	return c.channel.PublishWithContext(
		ctx,
		"",          // exchange
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         data,
		},
	)
}

// Consume continuously puts queue items on the returned channel. Callers must
// Ack each delivery when it has been processed, or Nack it on failure;
// ignoring this causes data to build up on the broker.
func (c *Client) Consume() (<-chan amqp.Delivery, error) {
	if !c.isReady() {
		return nil, errNotConnected
	}

	if err := c.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	); err != nil {
		return nil, err
	}

	return c.channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
}

// Close cleanly shuts down the channel and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return errAlreadyClosed
	}
	close(c.done)

	if err := c.channel.Close(); err != nil {
		return err
	}
	if err := c.connection.Close(); err != nil {
		return err
	}
	c.ready = false

	if c.metrics != nil {
		c.metrics.ConnectionStatus.Set(0)
	}
	return nil
}
