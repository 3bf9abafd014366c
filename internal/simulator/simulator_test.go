package simulator_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ariot.dev/platform/internal/consumer"
	"ariot.dev/platform/internal/simulator"
	"ariot.dev/platform/pkg/generator"
	"ariot.dev/platform/pkg/mq/mock"
)

var _ = Describe("Simulator", func() {
	var mqClient *mock.MockClient

	BeforeEach(func() {
		mqClient = mock.NewMockClient()
	})

	Describe("NewSimulator", func() {
		It("should create a simulator with a tracker fleet", func() {
			sim := simulator.NewSimulator(mqClient, "chirpstack", "gw-sim")
			Expect(sim).NotTo(BeNil())
			Expect(sim.DeviceCount()).To(BeNumerically(">=", 1))
			Expect(sim.DeviceCount()).To(BeNumerically("<=", 5))
		})

		It("should keep the provided MQ client", func() {
			sim := simulator.NewSimulator(mqClient, "chirpstack", "gw-sim")
			Expect(sim.MQClient).To(Equal(mqClient))
		})
	})

	Describe("PublishUplink", func() {
		var sim *simulator.Simulator

		BeforeEach(func() {
			sim = simulator.NewSimulator(mqClient, "chirpstack", "gw-sim")
		})

		It("should publish a decodable envelope", func() {
			Expect(sim.PublishUplink(context.Background())).To(Succeed())

			published := mqClient.PublishedData()
			Expect(published).To(HaveLen(1))

			var envelope consumer.Envelope
			Expect(json.Unmarshal(published[0], &envelope)).To(Succeed())
			Expect(envelope.Slug).To(Equal("chirpstack"))

			var uplink generator.Uplink
			Expect(json.Unmarshal(envelope.Payload, &uplink)).To(Succeed())
			Expect(uplink.GatewayID).To(Equal("gw-sim"))
			Expect(uplink.RSSI).To(BeNumerically("<", 0))
			Expect(uplink.Frequency).To(BeNumerically(">", 0))
		})

		It("should surface publish failures", func() {
			mqClient.PublishError = errors.New("broker unavailable")

			err := sim.PublishUplink(context.Background())
			Expect(err).To(MatchError("broker unavailable"))
		})

		It("should publish one envelope per call", func() {
			for range 10 {
				Expect(sim.PublishUplink(context.Background())).To(Succeed())
			}
			Expect(mqClient.PublishedData()).To(HaveLen(10))
		})
	})
})
