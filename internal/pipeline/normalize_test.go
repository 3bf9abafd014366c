package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ariot.dev/platform/internal/pipeline"
)

var _ = Describe("Normalize", func() {
	It("should apply all defaults to an empty decoder output", func() {
		m := pipeline.Normalize(map[string]any{})

		Expect(m.RSSI).To(Equal(pipeline.DefaultRSSI))
		Expect(m.SNR).To(Equal(pipeline.DefaultSNR))
		Expect(m.Frequency).To(Equal(pipeline.DefaultFrequency))
		Expect(m.GatewayID).To(Equal(pipeline.DefaultGatewayID))
		Expect(m.SpreadingFactor).To(BeNil())
		Expect(m.Latitude).To(BeNil())
		Expect(m.Longitude).To(BeNil())
	})

	It("should pass canonical field names straight through", func() {
		m := pipeline.Normalize(map[string]any{
			"rssi":       -101.0,
			"snr":        4.25,
			"frequency":  867.5,
			"gateway_id": "gw-roof",
			"latitude":   41.0,
			"longitude":  29.0,
		})

		Expect(m.RSSI).To(Equal(-101.0))
		Expect(m.SNR).To(Equal(4.25))
		Expect(m.Frequency).To(Equal(867.5))
		Expect(m.GatewayID).To(Equal("gw-roof"))
		Expect(*m.Latitude).To(Equal(41.0))
		Expect(*m.Longitude).To(Equal(29.0))
	})

	DescribeTable("coordinate aliases",
		func(decoded map[string]any, lat, lon float64) {
			m := pipeline.Normalize(decoded)
			Expect(m.Latitude).NotTo(BeNil())
			Expect(m.Longitude).NotTo(BeNil())
			Expect(*m.Latitude).To(Equal(lat))
			Expect(*m.Longitude).To(Equal(lon))
		},
		Entry("lat/lon", map[string]any{"lat": 10.0, "lon": 20.0}, 10.0, 20.0),
		Entry("lat/lng", map[string]any{"lat": 10.0, "lng": 20.0}, 10.0, 20.0),
		Entry("canonical wins over alias",
			map[string]any{"latitude": 1.0, "lat": 99.0, "longitude": 2.0, "lng": 99.0}, 1.0, 2.0),
		Entry("lng wins over lon",
			map[string]any{"lat": 10.0, "lng": 20.0, "lon": 99.0}, 10.0, 20.0),
	)

	DescribeTable("spreading factor aliases",
		func(decoded map[string]any, want float64) {
			m := pipeline.Normalize(decoded)
			Expect(m.SpreadingFactor).NotTo(BeNil())
			Expect(*m.SpreadingFactor).To(Equal(want))
		},
		Entry("spreadingFactor", map[string]any{"spreadingFactor": 7.0}, 7.0),
		Entry("sf", map[string]any{"sf": 9.0}, 9.0),
		Entry("spreading_factor", map[string]any{"spreading_factor": 12.0}, 12.0),
		Entry("camelCase wins", map[string]any{"spreadingFactor": 7.0, "sf": 12.0}, 7.0),
	)

	It("should accept integer-typed script exports", func() {
		m := pipeline.Normalize(map[string]any{
			"rssi": int64(-90),
			"snr":  int(3),
			"lat":  int64(41),
			"lon":  int64(29),
		})

		Expect(m.RSSI).To(Equal(-90.0))
		Expect(m.SNR).To(Equal(3.0))
		Expect(*m.Latitude).To(Equal(41.0))
		Expect(*m.Longitude).To(Equal(29.0))
	})

	It("should keep an explicit zero instead of the default", func() {
		m := pipeline.Normalize(map[string]any{"rssi": 0.0, "snr": 0.0})

		Expect(m.RSSI).To(Equal(0.0))
		Expect(m.SNR).To(Equal(0.0))
	})

	It("should skip non-numeric values and keep the fallback", func() {
		m := pipeline.Normalize(map[string]any{
			"rssi":       "strong",
			"latitude":   "here",
			"gateway_id": "",
		})

		Expect(m.RSSI).To(Equal(pipeline.DefaultRSSI))
		Expect(m.Latitude).To(BeNil())
		Expect(m.GatewayID).To(Equal(pipeline.DefaultGatewayID))
	})
})
