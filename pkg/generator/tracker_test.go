package generator_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ariot.dev/platform/pkg/generator"
)

var _ = Describe("Tracker", func() {
	Describe("NewTrackerDevice", func() {
		It("should populate every field", func() {
			device := generator.NewTrackerDevice()

			Expect(device).NotTo(BeNil())
			Expect(device.DeviceID).NotTo(BeEmpty())
			Expect(device.Name).NotTo(BeEmpty())
			Expect(device.MacAddress).NotTo(BeEmpty())
			Expect(device.Firmware).NotTo(BeEmpty())
		})

		It("should give devices distinct identities", func() {
			a := generator.NewTrackerDevice()
			b := generator.NewTrackerDevice()
			Expect(a.DeviceID).NotTo(Equal(b.DeviceID))
		})
	})

	Describe("UplinkGenerator", func() {
		var gen *generator.UplinkGenerator

		BeforeEach(func() {
			device := generator.NewTrackerDevice()
			gen = generator.NewUplinkGenerator(device, "gw-test", 41.0082, 28.9784)
		})

		It("should produce uplinks within physical bounds", func() {
			for range 200 {
				uplink := gen.Next(time.Now())

				Expect(uplink.GatewayID).To(Equal("gw-test"))
				Expect(uplink.RSSI).To(And(
					BeNumerically(">=", -130),
					BeNumerically("<=", -30),
				))
				Expect(uplink.SNR).To(And(
					BeNumerically(">=", -20),
					BeNumerically("<=", 12),
				))
				Expect(uplink.Frequency).To(Equal(868.1))
				Expect(uplink.SpreadingFactor).To(And(
					BeNumerically(">=", 7),
					BeNumerically("<=", 12),
				))
			}
		})

		It("should start near the gateway and drift away", func() {
			first := gen.Next(time.Now())
			Expect(first.Latitude).To(BeNumerically("~", 41.0082, 0.01))
			Expect(first.Longitude).To(BeNumerically("~", 28.9784, 0.01))

			var last *generator.Uplink
			for range 500 {
				last = gen.Next(time.Now())
			}

			firstDist := (first.Latitude-41.0082)*(first.Latitude-41.0082) +
				(first.Longitude-28.9784)*(first.Longitude-28.9784)
			lastDist := (last.Latitude-41.0082)*(last.Latitude-41.0082) +
				(last.Longitude-28.9784)*(last.Longitude-28.9784)
			Expect(lastDist).To(BeNumerically(">", firstDist))
		})

		It("should degrade the signal as distance grows", func() {
			first := gen.Next(time.Now())
			var sum float64
			const tail = 50
			for i := 0; i < 450; i++ {
				gen.Next(time.Now())
			}
			for i := 0; i < tail; i++ {
				sum += gen.Next(time.Now()).RSSI
			}

			Expect(sum / tail).To(BeNumerically("<", first.RSSI))
		})

		It("should assign higher spreading factors to weaker signals", func() {
			seen := map[float64]bool{}
			for range 500 {
				seen[gen.Next(time.Now()).SpreadingFactor] = true
			}
			// A full drive test crosses more than one ADR step.
			Expect(len(seen)).To(BeNumerically(">", 1))
		})
	})
})
