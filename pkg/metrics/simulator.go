package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the drive-test simulator.
type SimulatorMetrics struct {
	UplinksGenerated   *prometheus.CounterVec
	PublishFailures    *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	ActiveProducers    prometheus.Gauge
	DevicesSimulated   prometheus.Counter
}

// NewSimulatorMetrics creates and registers simulator metrics.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		UplinksGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "uplinks_generated_total",
				Help:      "Total number of synthetic uplinks generated",
			},
			[]string{"slug"},
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "publish_failures_total",
				Help:      "Total number of uplink publish failures",
			},
			[]string{"slug", "reason"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "generation_duration_seconds",
				Help:      "Duration of uplink generation and publish",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"slug"},
		),
		ActiveProducers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "active_producers",
				Help:      "Number of currently active uplink producers",
			},
		),
		DevicesSimulated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "devices_simulated_total",
				Help:      "Total number of simulated tracker devices",
			},
		),
	}

	MustRegister(
		m.UplinksGenerated,
		m.PublishFailures,
		m.GenerationDuration,
		m.ActiveProducers,
		m.DevicesSimulated,
	)

	return m
}
