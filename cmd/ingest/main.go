package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"heartbeat/src/clients/kafka"
	"heartbeat/src/clients/postgresql"
	"heartbeat/src/platform/config"
	"heartbeat/src/platform/lifecycle"
	"heartbeat/src/platform/logging"
	"heartbeat/src/platform/metrics"
	"heartbeat/src/services/ingest"
	"heartbeat/src/store"
)

const serviceName = "heartbeat-ingest"

func main() {
	cfg, err := config.Load(config.LoadOptions{
		ServiceName:   serviceName,
		YamlFilePaths: []string{"/app/config/config.yaml", "config/config.yaml"},
		EnvVarPrefix:  "HEARTBEAT_",
	})
	if err != nil {
		panic(fmt.Sprintf("Error loading config: %+v", err))
	}

	loggerFactory, err := logging.NewFactory(logging.Options{
		ServiceName:   cfg.Application.Name,
		InstanceName:  cfg.Application.InstanceName,
		Version:       cfg.Application.Version,
		RootLevel:     cfg.Logging.RootLevel,
		LiteralLevels: cfg.Logging.LiteralLevels,
		PrettyPrint:   cfg.Logging.PrettyPrint,
	})
	if err != nil {
		panic(fmt.Sprintf("Error creating logger factory: %+v", err))
	}
	logger := loggerFactory.Child("main")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters := metrics.NewPipelineCounters(registry)
	// Port offset by 1 so producer and consumers can coexist on one host.
	metricsServer := metrics.NewServer(cfg.Prometheus.Port+1, registry, loggerFactory.Child("metrics.server"))

	commonKafka := kafka.CommonConfig{
		ClientID:       cfg.Application.Name + "." + cfg.Application.InstanceName,
		ServiceName:    cfg.Application.Name,
		ServiceVersion: cfg.Application.Version,
		SeedBrokers:    cfg.Kafka.BootstrapServers,
		Username:       cfg.Kafka.Username,
		Password:       string(cfg.Kafka.Password),
	}
	kafkaLoggers := kafka.ConfigurationLoggers{
		Client: loggerFactory.Child("kafka.client"),
		Driver: loggerFactory.Child("kafka.driver"),
	}

	consumerClient, err := kafka.NewConsumer(commonKafka, kafka.ConsumerConfig{
		GroupID: cfg.Kafka.Groups.DBWriter,
		Topics:  []string{cfg.Kafka.Topics.Raw},
	}, kafkaLoggers)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create kafka consumer")
	}

	quarantineClient, err := kafka.NewProducer(commonKafka, kafka.ProducerConfig{}, kafkaLoggers)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create quarantine producer")
	}

	postgresClient, err := postgresql.NewClient(postgresql.ClientOptions{
		Host:                    cfg.Postgres.Host,
		Port:                    cfg.Postgres.Port,
		Database:                cfg.Postgres.DbName,
		Username:                cfg.Postgres.Username,
		Password:                cfg.Postgres.Password,
		PoolMinConns:            cfg.Postgres.Pool.Min,
		PoolMaxConns:            cfg.Postgres.Pool.Max,
		ApplicationInstanceName: cfg.Application.InstanceName,
		Logger:                  loggerFactory.Child("postgresql.client"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create postgresql client")
	}

	lifecycleController, err := lifecycle.NewController(lifecycle.ControllerOptions{
		Services: map[string]lifecycle.ServiceLifecycle{
			"metrics.server":    metricsServer,
			"kafka.consumer":    consumerClient,
			"kafka.producer":    quarantineClient,
			"postgresql.client": postgresClient,
		},
		Logger: loggerFactory.Child("lifecycle.controller"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create lifecycle controller")
	}
	if err := lifecycleController.Start(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start lifecycle controller")
	}
	defer lifecycleController.Stop(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := kafka.EnsureTopics(
		ctx, quarantineClient.Driver, loggerFactory.Child("kafka.admin"), cfg.Kafka.Partitions,
		cfg.Kafka.Topics.Raw, cfg.Kafka.Topics.Invalid, cfg.Kafka.Topics.DLQ,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure topics")
	}
	writer := store.NewWriter(loggerFactory.Child("store.writer"))
	if err := writer.EnsureSchema(ctx, postgresClient.Driver); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	sink := ingest.NewStoreSink(
		postgresClient.Driver, writer, cfg.Kafka.Groups.DBWriter,
		loggerFactory.Child("ingest.sink"),
	)
	quarantine := ingest.NewKafkaQuarantine(
		quarantineClient, cfg.Kafka.Topics.Invalid, cfg.Kafka.Topics.DLQ,
	)

	service, err := ingest.NewService(&ingest.Options{
		Consumer:   consumerClient.Driver,
		Sink:       sink,
		Quarantine: quarantine,
		RateMin:    cfg.HeartRate.Min,
		RateMax:    cfg.HeartRate.Max,
		Counters:   counters,
		Logger:     loggerFactory.Child("ingest.service"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create ingest service")
	}

	if err := service.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Ingest loop terminated with error")
	}
}
