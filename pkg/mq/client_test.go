package mq_test

import (
	"context"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ariot.dev/platform/pkg/mq"
)

var _ = Describe("Client", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("New", func() {
		It("should return a client that is not yet connected", func() {
			client := mq.New("uplink-data", "amqp://127.0.0.1:1", logger)
			Expect(client).NotTo(BeNil())

			// The broker address is unreachable, so consuming must fail
			// rather than block.
			deliveries, err := client.Consume()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not connected"))
			Expect(deliveries).To(BeNil())
		})
	})

	Describe("Publish", func() {
		It("should honor context cancellation while disconnected", func() {
			client := mq.New("uplink-data", "amqp://127.0.0.1:1", logger)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := client.Publish(ctx, []byte(`{"slug":"webhook"}`))
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("UnsafePublish", func() {
		It("should fail fast while disconnected", func() {
			client := mq.New("uplink-data", "amqp://127.0.0.1:1", logger)

			err := client.UnsafePublish(context.Background(), []byte("x"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not connected"))
		})
	})

	Describe("Close", func() {
		It("should report already closed when never connected", func() {
			client := mq.New("uplink-data", "amqp://127.0.0.1:1", logger)

			err := client.Close()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("already closed"))
		})
	})
})
