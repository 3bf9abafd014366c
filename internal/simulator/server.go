package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ariot.dev/platform/pkg/metrics"
	"ariot.dev/platform/pkg/mq"
)

// ServerConfig holds the configuration for the simulator server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// RabbitMQURL is the connection string for RabbitMQ
	RabbitMQURL string
	// QueueName is the queue the server's consumer reads from
	QueueName string
	// Slug addresses the integration that decodes the synthetic uplinks
	Slug string
	// GatewayID is stamped on every uplink
	GatewayID string
	// Interval is the time between uplinks per simulator
	Interval time.Duration
	// SimulatorCount is the number of concurrent simulators
	SimulatorCount int
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.SimulatorMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations
	MQMetrics *metrics.MQMetrics
}

// Server manages multiple simulator instances.
type Server struct {
	logger     *slog.Logger
	config     *ServerConfig
	simulators []*Simulator
	clients    []*mq.Client
	wg         sync.WaitGroup
	metrics    *metrics.SimulatorMetrics
}

var (
	errInvalidSimulatorCount = errors.New("simulator count must be greater than 0")
	errInvalidInterval       = errors.New("interval must be greater than 0")
	errLoggerRequired        = errors.New("logger is required")
	errSlugRequired          = errors.New("slug is required")
)

// NewServer creates a new simulator server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.SimulatorCount <= 0 {
		return nil, errInvalidSimulatorCount
	}
	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}
	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}
	if cfg.Slug == "" {
		return nil, errSlugRequired
	}

	gatewayID := cfg.GatewayID
	if gatewayID == "" {
		gatewayID = "gw-sim"
	}

	s := &Server{
		config:     cfg,
		simulators: make([]*Simulator, 0, cfg.SimulatorCount),
		clients:    make([]*mq.Client, 0, cfg.SimulatorCount),
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}

	for i := 0; i < cfg.SimulatorCount; i++ {
		client := mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger.With(
			slog.String("component", "mq-client"),
			slog.Int("simulator_id", i),
		))
		if cfg.MQMetrics != nil {
			client.SetMetrics(cfg.MQMetrics)
		}

		sim := NewSimulator(client, cfg.Slug, fmt.Sprintf("%s-%d", gatewayID, i))
		if cfg.Metrics != nil {
			sim.SetMetrics(cfg.Metrics)
		}

		s.clients = append(s.clients, client)
		s.simulators = append(s.simulators, sim)

		s.logger.Info("created simulator instance",
			"simulator_id", i,
			"queue", cfg.QueueName,
			"slug", cfg.Slug,
			"device_count", sim.DeviceCount(),
		)
	}

	return s, nil
}

// Run starts all simulators and blocks until shutdown signal is received.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	for i, sim := range s.simulators {
		s.wg.Add(1)
		go s.runSimulator(ctx, i, sim)
	}

	s.logger.Info("simulator server started",
		"simulator_count", len(s.simulators),
		"interval", s.config.Interval,
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	s.logger.Info("waiting for simulators to shut down...")
	s.wg.Wait()

	s.logger.Info("closing MQ clients...")
	s.closeClients()

	s.logger.Info("simulator server stopped")
	return nil
}

// runSimulator publishes uplinks at the configured interval.
func (s *Server) runSimulator(ctx context.Context, id int, sim *Simulator) {
	defer s.wg.Done()

	if s.metrics != nil {
		s.metrics.ActiveProducers.Inc()
		defer s.metrics.ActiveProducers.Dec()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	simLogger := s.logger.With(slog.Int("simulator_id", id))
	simLogger.Info("simulator started")

	for {
		select {
		case <-ctx.Done():
			simLogger.Info("simulator shutting down")
			return

		case <-ticker.C:
			if err := sim.PublishUplink(ctx); err != nil {
				simLogger.Error("failed to publish uplink",
					"error", err,
				)
				// Continue on error - don't stop the simulator
				continue
			}

			simLogger.Debug("uplink published")
		}
	}
}

// closeClients closes all MQ clients gracefully.
func (s *Server) closeClients() {
	var wg sync.WaitGroup

	for i, client := range s.clients {
		wg.Add(1)
		go func(id int, c *mq.Client) {
			defer wg.Done()

			if err := c.Close(); err != nil {
				s.logger.Error("failed to close MQ client",
					"simulator_id", id,
					"error", err,
				)
				return
			}

			s.logger.Info("MQ client closed", "simulator_id", id)
		}(i, client)
	}

	wg.Wait()
}

// Shutdown initiates a graceful shutdown of the server.
// This is an alternative to sending OS signals.
func (s *Server) Shutdown() error {
	s.logger.Info("shutdown requested")

	s.closeClients()

	return nil
}
