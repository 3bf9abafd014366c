package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ClientInterface defines the message queue operations the rest of the
// application depends on, enabling mocking in tests.
type ClientInterface interface {
	// Publish pushes data onto the queue and waits for broker confirmation.
	Publish(ctx context.Context, data []byte) error

	// UnsafePublish pushes to the queue without waiting for confirmation.
	UnsafePublish(ctx context.Context, data []byte) error

	// Consume continuously puts queue items on the returned channel.
	// Each delivery must be Ack'd on success or Nack'd on failure.
	Consume() (<-chan amqp.Delivery, error)

	// Close cleanly shuts down the channel and connection.
	Close() error
}

// Ensure Client implements ClientInterface.
var _ ClientInterface = (*Client)(nil)
