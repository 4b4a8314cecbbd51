package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"heartbeat/src/clients/kafka"
	"heartbeat/src/platform/config"
	"heartbeat/src/platform/lifecycle"
	"heartbeat/src/platform/logging"
	"heartbeat/src/platform/metrics"
	"heartbeat/src/services/producer"
	"heartbeat/src/simulator"
)

const serviceName = "heartbeat-producer"

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
	metricsServer := metrics.NewServer(cfg.Prometheus.Port, registry, loggerFactory.Child("metrics.server"))

	producerClient, err := kafka.NewProducer(
		kafka.CommonConfig{
			ClientID:       cfg.Application.Name + "." + cfg.Application.InstanceName,
			ServiceName:    cfg.Application.Name,
			ServiceVersion: cfg.Application.Version,
			SeedBrokers:    cfg.Kafka.BootstrapServers,
			Username:       cfg.Kafka.Username,
			Password:       string(cfg.Kafka.Password),
		},
		kafka.ProducerConfig{},
		kafka.ConfigurationLoggers{
			Client: loggerFactory.Child("kafka.client"),
			Driver: loggerFactory.Child("kafka.driver"),
		},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create kafka producer")
	}

	lifecycleController, err := lifecycle.NewController(lifecycle.ControllerOptions{
		Services: map[string]lifecycle.ServiceLifecycle{
			"metrics.server": metricsServer,
			"kafka.producer": producerClient,
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
		ctx, producerClient.Driver, loggerFactory.Child("kafka.admin"), cfg.Kafka.Partitions,
		cfg.Kafka.Topics.Raw,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure topics")
	}

	stream, err := simulator.NewStream(simulator.Options{
		CustomerCount:            cfg.Sim.CustomerCount,
		InvalidRatio:             cfg.Sim.InvalidRatio,
		HeartRateMin:             cfg.HeartRate.Min,
		HeartRateMax:             cfg.HeartRate.Max,
		DynamicCustomers:         cfg.Sim.DynamicCustomers,
		ActiveCustomersMin:       cfg.Sim.ActiveCustomersMin,
		ActiveCustomersMax:       cfg.Sim.ActiveCustomersMax,
		ActiveRefreshProbability: cfg.Sim.ActiveRefreshProbability,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create simulator stream")
	}

	service, err := producer.NewService(&producer.Options{
		Client:          producerClient,
		Stream:          stream,
		Topic:           cfg.Kafka.Topics.Raw,
		EventsPerSecond: cfg.Sim.EventsPerSecond,
		BurstMultiplier: cfg.Sim.BurstMultiplier,
		SleepInterval:   cfg.Sim.SleepInterval,
		Counters:        counters,
		Logger:          loggerFactory.Child("producer.service"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create producer service")
	}

	if err := service.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Producer loop terminated with error")
	}
}
