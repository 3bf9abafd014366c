package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for the webhook decoding pipeline.
type PipelineMetrics struct {
	RequestsTotal       *prometheus.CounterVec
	DecodeDuration      *prometheus.HistogramVec
	DecodeFailures      *prometheus.CounterVec
	MeasurementsStored  *prometheus.CounterVec
	AuditWrites         *prometheus.CounterVec
	AuditWriteFailures  prometheus.Counter
	DBOperationsTotal   *prometheus.CounterVec
	DBOperationDuration *prometheus.HistogramVec
}

// NewPipelineMetrics creates and registers webhook pipeline metrics.
func NewPipelineMetrics(namespace string) *PipelineMetrics {
	m := &PipelineMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "requests_total",
				Help:      "Total number of webhook payloads processed, by terminal outcome",
			},
			[]string{"slug", "outcome"},
		),
		DecodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "decode_duration_seconds",
				Help:      "Duration of decoder script compilation and execution",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"slug"},
		),
		DecodeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "decode_failures_total",
				Help:      "Total number of decoder script failures",
			},
			[]string{"slug", "stage"}, // stage: compile, runtime
		),
		MeasurementsStored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "measurements_stored_total",
				Help:      "Total number of measurement rows written",
			},
			[]string{"slug", "located"}, // located: yes, no
		),
		AuditWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "audit_writes_total",
				Help:      "Total number of audit log entries written",
			},
			[]string{"level"},
		),
		AuditWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "audit_write_failures_total",
				Help:      "Total number of audit log writes that failed",
			},
		),
		DBOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "operations_total",
				Help:      "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),
		DBOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "operation_duration_seconds",
				Help:      "Duration of database operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
	}

	MustRegister(
		m.RequestsTotal,
		m.DecodeDuration,
		m.DecodeFailures,
		m.MeasurementsStored,
		m.AuditWrites,
		m.AuditWriteFailures,
		m.DBOperationsTotal,
		m.DBOperationDuration,
	)

	return m
}
