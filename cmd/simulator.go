package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ariot.dev/platform/internal/simulator"
	"ariot.dev/platform/pkg/logger"
	"ariot.dev/platform/pkg/metrics"
)

var simulatorCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Run the drive-test simulator",
	Long: `Run the drive-test simulator that:
- Creates fleets of synthetic GPS trackers around simulated gateways
- Derives signal quality from the distance on each uplink
- Publishes uplink envelopes to RabbitMQ for the server's consumer`,
	RunE: runSimulator,
}

func init() {
	rootCmd.AddCommand(simulatorCmd)

	// Simulator-specific flags
	simulatorCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	simulatorCmd.Flags().String("queue-name", "uplinks", "RabbitMQ queue name for uplink envelopes")
	simulatorCmd.Flags().String("slug", "chirpstack", "integration slug that decodes the uplinks")
	simulatorCmd.Flags().String("gateway-id", "gw-sim", "gateway id stamped on uplinks")
	simulatorCmd.Flags().Duration("interval", 5*time.Second, "time between uplinks per simulator")
	simulatorCmd.Flags().Int("simulator-count", 1, "number of concurrent simulators")

	// Bind flags to viper
	_ = viper.BindPFlag("simulator.rabbitmq.url", simulatorCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("simulator.rabbitmq.queue_name", simulatorCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("simulator.slug", simulatorCmd.Flags().Lookup("slug"))
	_ = viper.BindPFlag("simulator.gateway_id", simulatorCmd.Flags().Lookup("gateway-id"))
	_ = viper.BindPFlag("simulator.interval", simulatorCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("simulator.count", simulatorCmd.Flags().Lookup("simulator-count"))
}

func runSimulator(_ *cobra.Command, _ []string) error {
	log := GetLogger()
	log.Info("starting simulator service")

	config := &simulator.ServerConfig{
		Logger:         logger.Component(log, "simulator"),
		RabbitMQURL:    viper.GetString("simulator.rabbitmq.url"),
		QueueName:      viper.GetString("simulator.rabbitmq.queue_name"),
		Slug:           viper.GetString("simulator.slug"),
		GatewayID:      viper.GetString("simulator.gateway_id"),
		Interval:       viper.GetDuration("simulator.interval"),
		SimulatorCount: viper.GetInt("simulator.count"),
		Metrics:        metrics.NewSimulatorMetrics(metricsNamespace),
		MQMetrics:      metrics.NewMQMetrics(metricsNamespace),
	}

	srv, err := simulator.NewServer(config)
	if err != nil {
		log.Error("failed to create simulator server", "error", err)
		return err
	}

	log.Info("simulator configuration",
		"rabbitmq_url", config.RabbitMQURL,
		"queue", config.QueueName,
		"slug", config.Slug,
		"interval", config.Interval,
		"simulator_count", config.SimulatorCount,
	)

	if err := srv.Run(context.Background()); err != nil {
		log.Error("simulator server error", "error", err)
		return err
	}

	log.Info("simulator server stopped")
	return nil
}
