package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ariot.dev/platform/internal/consumer"
	"ariot.dev/platform/internal/pipeline"
	"ariot.dev/platform/internal/server"
	"ariot.dev/platform/internal/store"
	"ariot.dev/platform/pkg/logger"
	"ariot.dev/platform/pkg/metrics"
)

const metricsNamespace = "ariot"

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the web application server",
	Long: `Run the web application server that:
- Ingests webhook payloads through per-integration decoder scripts
- Persists normalized measurements to PostgreSQL
- Serves the management and map data APIs behind session auth
- Optionally consumes queue-borne uplinks from RabbitMQ`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	serverCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	serverCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	serverCmd.Flags().String("db-password", "", "PostgreSQL password")
	serverCmd.Flags().String("db-name", "ariot", "PostgreSQL database name")
	serverCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	serverCmd.Flags().Int("http-port", 3000, "HTTP server port")
	serverCmd.Flags().String("session-secret", "", "secret for signing session cookies")
	serverCmd.Flags().String("static-dir", "public", "directory of frontend assets")
	serverCmd.Flags().Duration("decoder-timeout", 2*time.Second, "wall-clock budget per decoder invocation")
	serverCmd.Flags().Bool("consume", false, "consume uplink envelopes from RabbitMQ")
	serverCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	serverCmd.Flags().String("queue-name", "uplinks", "RabbitMQ queue name for uplink envelopes")

	// Bind flags to viper
	_ = viper.BindPFlag("server.db.host", serverCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("server.db.port", serverCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("server.db.user", serverCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("server.db.password", serverCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("server.db.name", serverCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("server.db.sslmode", serverCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("server.http.port", serverCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("server.session.secret", serverCmd.Flags().Lookup("session-secret"))
	_ = viper.BindPFlag("server.static.dir", serverCmd.Flags().Lookup("static-dir"))
	_ = viper.BindPFlag("server.decoder.timeout", serverCmd.Flags().Lookup("decoder-timeout"))
	_ = viper.BindPFlag("server.rabbitmq.consume", serverCmd.Flags().Lookup("consume"))
	_ = viper.BindPFlag("server.rabbitmq.url", serverCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("server.rabbitmq.queue_name", serverCmd.Flags().Lookup("queue-name"))
}

func runServer(_ *cobra.Command, _ []string) error {
	log := GetLogger()
	log.Info("starting server service")

	db, err := store.NewDB(&store.DBConfig{
		Logger:   logger.Component(log, "db"),
		Host:     viper.GetString("server.db.host"),
		Port:     viper.GetInt("server.db.port"),
		User:     viper.GetString("server.db.user"),
		Password: viper.GetString("server.db.password"),
		DBName:   viper.GetString("server.db.name"),
		SSLMode:  viper.GetString("server.db.sslmode"),
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return err
	}
	defer func() {
		if closeErr := store.CloseDB(db, log); closeErr != nil {
			log.Error("failed to close database", "error", closeErr)
		}
	}()

	st, err := store.New(db, logger.Component(log, "store"))
	if err != nil {
		log.Error("failed to create store", "error", err)
		return err
	}

	pipelineMetrics := metrics.NewPipelineMetrics(metricsNamespace)
	st.SetMetrics(pipelineMetrics)

	p, err := pipeline.New(&pipeline.Config{
		Logger:         logger.Component(log, "pipeline"),
		Store:          st,
		DecoderTimeout: viper.GetDuration("server.decoder.timeout"),
		Metrics:        pipelineMetrics,
	})
	if err != nil {
		log.Error("failed to create pipeline", "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if viper.GetBool("server.rabbitmq.consume") {
		mqConsumer, consErr := consumer.NewConsumer(&consumer.ConsumerConfig{
			Logger:      logger.Component(log, "consumer"),
			Pipeline:    p,
			RabbitMQURL: viper.GetString("server.rabbitmq.url"),
			QueueName:   viper.GetString("server.rabbitmq.queue_name"),
			Metrics:     metrics.NewMQMetrics(metricsNamespace),
		})
		if consErr != nil {
			log.Error("failed to create consumer", "error", consErr)
			return consErr
		}
		if consErr := mqConsumer.Start(ctx); consErr != nil {
			log.Error("failed to start consumer", "error", consErr)
			return consErr
		}
		defer func() {
			cancel()
			if stopErr := mqConsumer.Stop(); stopErr != nil {
				log.Error("failed to stop consumer", "error", stopErr)
			}
		}()
	}

	srv, err := server.NewServer(&server.ServerConfig{
		Logger:        logger.Component(log, "server"),
		Store:         st,
		Pipeline:      p,
		HTTPPort:      viper.GetInt("server.http.port"),
		SessionSecret: viper.GetString("server.session.secret"),
		StaticDir:     viper.GetString("server.static.dir"),
		Metrics:       metrics.NewServerMetrics(metricsNamespace),
	})
	if err != nil {
		log.Error("failed to create server", "error", err)
		return err
	}

	log.Info("server configuration",
		"http_port", viper.GetInt("server.http.port"),
		"db_host", viper.GetString("server.db.host"),
		"db_name", viper.GetString("server.db.name"),
		"consume", viper.GetBool("server.rabbitmq.consume"),
	)

	if err := srv.Run(ctx); err != nil {
		log.Error("server error", "error", err)
		return err
	}

	log.Info("server stopped")
	return nil
}
