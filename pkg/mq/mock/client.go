// Package mock provides mock implementations of the mq package interfaces for testing.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"ariot.dev/platform/pkg/mq"
)

// MockClient is a mock implementation of ClientInterface for testing.
// It tracks method calls and allows configuring return values and behavior.
type MockClient struct {
	mu sync.Mutex

	// PublishFunc is called when Publish is invoked. If nil, returns PublishError.
	PublishFunc func(ctx context.Context, data []byte) error
	// PublishError is returned by Publish if PublishFunc is nil.
	PublishError error
	// PublishCalls tracks all calls to Publish with their arguments.
	PublishCalls []PublishCall

	// UnsafePublishFunc is called when UnsafePublish is invoked. If nil, returns UnsafePublishError.
	UnsafePublishFunc func(ctx context.Context, data []byte) error
	// UnsafePublishError is returned by UnsafePublish if UnsafePublishFunc is nil.
	UnsafePublishError error
	// UnsafePublishCalls tracks all calls to UnsafePublish with their arguments.
	UnsafePublishCalls []PublishCall

	// ConsumeFunc is called when Consume is invoked. If nil, returns ConsumeChannel and ConsumeError.
	ConsumeFunc func() (<-chan amqp.Delivery, error)
	// ConsumeChannel is returned by Consume if ConsumeFunc is nil.
	ConsumeChannel <-chan amqp.Delivery
	// ConsumeError is returned by Consume if ConsumeFunc is nil.
	ConsumeError error
	// ConsumeCalls tracks the number of times Consume was called.
	ConsumeCalls int

	// CloseFunc is called when Close is invoked. If nil, returns CloseError.
	CloseFunc func() error
	// CloseError is returned by Close if CloseFunc is nil.
	CloseError error
	// CloseCalls tracks the number of times Close was called.
	CloseCalls int
}

// PublishCall records the arguments to a publish call.
type PublishCall struct {
	Ctx  context.Context
	Data []byte
}

// NewMockClient creates a new MockClient with default behavior (no errors).
func NewMockClient() *MockClient {
	return &MockClient{
		PublishCalls:       make([]PublishCall, 0),
		UnsafePublishCalls: make([]PublishCall, 0),
		ConsumeChannel:     make(chan amqp.Delivery),
	}
}

// Publish implements ClientInterface.
func (m *MockClient) Publish(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishCalls = append(m.PublishCalls, PublishCall{
		Ctx:  ctx,
		Data: data,
	})

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, data)
	}
	return m.PublishError
}

// UnsafePublish implements ClientInterface.
func (m *MockClient) UnsafePublish(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UnsafePublishCalls = append(m.UnsafePublishCalls, PublishCall{
		Ctx:  ctx,
		Data: data,
	})

	if m.UnsafePublishFunc != nil {
		return m.UnsafePublishFunc(ctx, data)
	}
	return m.UnsafePublishError
}

// Consume implements ClientInterface.
func (m *MockClient) Consume() (<-chan amqp.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsumeCalls++

	if m.ConsumeFunc != nil {
		return m.ConsumeFunc()
	}
	return m.ConsumeChannel, m.ConsumeError
}

// Close implements ClientInterface.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return m.CloseError
}

// PublishedData returns a copy of every Publish payload, oldest first.
func (m *MockClient) PublishedData() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := make([][]byte, 0, len(m.PublishCalls))
	for _, call := range m.PublishCalls {
		data = append(data, call.Data)
	}
	return data
}

// Ensure MockClient implements ClientInterface.
var _ mq.ClientInterface = (*MockClient)(nil)
