package store

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"ariot.dev/platform/pkg/metrics"
)

// Store exposes the persistence operations used by the pipeline and the
// HTTP server. All methods are safe for concurrent use; each call performs
// independent statements and relies on the database's own isolation.
type Store struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.PipelineMetrics // optional
}

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateSlug is returned when an integration slug already exists.
	ErrDuplicateSlug = errors.New("endpoint slug already exists")
	// ErrInvalidInput is returned when required fields are missing.
	ErrInvalidInput = errors.New("invalid input")
)

// New creates a Store backed by db.
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Store{db: db, logger: logger}, nil
}

// SetMetrics sets the optional metrics collector shared with the pipeline.
func (s *Store) SetMetrics(m *metrics.PipelineMetrics) {
	s.metrics = m
}

// trackDB records one database operation if metrics are enabled.
func (s *Store) trackDB(operation, table string) func(err error) {
	if s.metrics == nil {
		return func(error) {}
	}
	timer := prometheus.NewTimer(s.metrics.DBOperationDuration.WithLabelValues(operation, table))
	return func(err error) {
		timer.ObserveDuration()
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.DBOperationsTotal.WithLabelValues(operation, table, status).Inc()
	}
}
