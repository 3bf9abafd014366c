// Package simulator generates synthetic drive-test uplinks and publishes
// them to RabbitMQ as queue envelopes for the server's consumer.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ariot.dev/platform/internal/consumer"
	"ariot.dev/platform/pkg/generator"
	"ariot.dev/platform/pkg/metrics"
	"ariot.dev/platform/pkg/mq"
)

var errNoDevices = errors.New("simulator has no devices")

// Simulator drives a fleet of synthetic trackers around one gateway and
// publishes their uplinks.
type Simulator struct {
	MQClient   mq.ClientInterface
	Slug       string
	generators []*generator.UplinkGenerator
	metrics    *metrics.SimulatorMetrics
}

// NewSimulator creates a simulator with a random fleet of 1-5 trackers
// starting at a random gateway position.
// Note: math/rand is acceptable for simulation data.
func NewSimulator(mqClient mq.ClientInterface, slug, gatewayID string) *Simulator {
	gatewayLat := -85 + rand.Float64()*170 // #nosec G404 - weak random is acceptable for test data generation
	gatewayLon := -180 + rand.Float64()*360

	deviceCount := rand.Intn(5) + 1
	generators := make([]*generator.UplinkGenerator, 0, deviceCount)
	for range deviceCount {
		device := generator.NewTrackerDevice()
		if device == nil {
			continue
		}
		generators = append(generators,
			generator.NewUplinkGenerator(device, gatewayID, gatewayLat, gatewayLon))
	}

	return &Simulator{
		MQClient:   mqClient,
		Slug:       slug,
		generators: generators,
	}
}

// SetMetrics sets the metrics collector for this simulator.
func (s *Simulator) SetMetrics(m *metrics.SimulatorMetrics) {
	s.metrics = m
	if m != nil {
		m.DevicesSimulated.Add(float64(len(s.generators)))
	}
}

// DeviceCount returns the number of simulated trackers.
func (s *Simulator) DeviceCount() int {
	return len(s.generators)
}

// PublishUplink advances a random tracker and publishes its uplink as a
// queue envelope.
func (s *Simulator) PublishUplink(ctx context.Context) error {
	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.GenerationDuration.WithLabelValues(s.Slug))
		defer timer.ObserveDuration()
	}

	if len(s.generators) == 0 {
		return errNoDevices
	}
	gen := s.generators[rand.Intn(len(s.generators))] // #nosec G404 - weak random is acceptable for simulation
	uplink := gen.Next(time.Now())

	payload, err := json.Marshal(uplink)
	if err != nil {
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues(s.Slug, "marshal_error").Inc()
		}
		return err
	}

	envelope, err := json.Marshal(consumer.Envelope{
		Slug:    s.Slug,
		Payload: payload,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues(s.Slug, "marshal_error").Inc()
		}
		return err
	}

	if err := s.MQClient.Publish(ctx, envelope); err != nil {
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues(s.Slug, "publish_error").Inc()
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.UplinksGenerated.WithLabelValues(s.Slug).Inc()
	}
	return nil
}
