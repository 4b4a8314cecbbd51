package kafka

import (
	"context"
	"reflect"
	"time"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/plugin/kzerolog"

	"heartbeat/src/platform/perr"
	"heartbeat/src/platform/validation"
	"heartbeat/src/util"
)

// CommonConfig covers the options shared by every client the pipeline
// creates, producer or consumer.
type CommonConfig struct {
	ClientID       string   `validate:"required,min=5,max=64"`
	ServiceName    string   `validate:"required,min=3,max=64"`
	ServiceVersion string   `validate:"required,min=1,max=32"`
	SeedBrokers    []string `validate:"required,hostport_list"`
	Username       string   `validate:"required_with=Password,omitempty,min=4,max=64"`
	Password       string   `validate:"required_with=Username,omitempty,min=4,max=64"`
}

// ProducerConfig pins the publish guarantees: all-ISR acknowledgement,
// idempotent delivery (franz-go default, never disabled here), bounded
// internal retries, micro-batching with fast compression, and an
// in-flight pipeline that stays safe under idempotence.
type ProducerConfig struct {
	RecordRetries     int           `validate:"gte=1,lte=30" default:"10"`
	Linger            time.Duration `validate:"gte=0,lte=1000000000" default:"5ms"`
	BatchMaxBytes     int32         `validate:"gte=1024,lte=10485760" default:"65536"`
	InflightPerBroker int           `validate:"gte=1,lte=10" default:"5"`
	DeliveryTimeout   time.Duration `validate:"gte=10000000000,lte=300000000000" default:"30s"`
}

// ConsumerConfig pins the consumption guarantees: manual commit only,
// earliest reset for fresh groups, and rebalance-liveness timeouts
// sized for slow store writes under back-pressure.
type ConsumerConfig struct {
	GroupID           string        `validate:"required,min=4,max=128"`
	Topics            []string      `validate:"required,min=1,unique,dive,required,min=4,max=128"`
	SessionTimeout    time.Duration `validate:"gte=10000000000,lte=600000000000" default:"45s"`
	HeartbeatInterval time.Duration `validate:"gte=1000000000,lte=150000000000" default:"15s"`
	RebalanceTimeout  time.Duration `validate:"gte=10000000000,lte=600000000000" default:"5m"`
	FetchMaxWait      time.Duration `validate:"gte=100000000,lte=10000000000" default:"1s"`
	FetchMinBytes     int32         `validate:"gte=1,lte=10485760" default:"1"`
}

// NewProducer builds a publish-side client for the raw, anomaly, and
// quarantine topics. Records are partitioned by key (customer_id) so
// per-subject ordering survives downstream.
func NewProducer(common CommonConfig, cfg ProducerConfig, logger ConfigurationLoggers) (*Client, error) {
	commonOpts, err := commonOptions(common, logger)
	if err != nil {
		return nil, err
	}
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return nil, err
	}

	opts := append(commonOpts,
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordRetries(cfg.RecordRetries),
		kgo.ProducerLinger(cfg.Linger),
		kgo.ProducerBatchMaxBytes(cfg.BatchMaxBytes),
		kgo.ProducerBatchCompression(kgo.Lz4Compression(), kgo.NoCompression()),
		kgo.MaxProduceRequestsInflightPerBroker(cfg.InflightPerBroker),
		kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
	)

	return newClient(opts, logger.Client), nil
}

// NewConsumer builds a group consumer with auto-commit disabled; the
// caller owns every offset commit.
func NewConsumer(common CommonConfig, cfg ConsumerConfig, logger ConfigurationLoggers) (*Client, error) {
	commonOpts, err := commonOptions(common, logger)
	if err != nil {
		return nil, err
	}
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return nil, err
	}

	opts := append(commonOpts,
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.HeartbeatInterval(cfg.HeartbeatInterval),
		kgo.RebalanceTimeout(cfg.RebalanceTimeout),
		kgo.FetchMaxWait(cfg.FetchMaxWait),
		kgo.FetchMinBytes(cfg.FetchMinBytes),
		kgo.OnPartitionsAssigned(partitionsAssigned(logger.Client)),
		kgo.OnPartitionsRevoked(partitionsRevoked(logger.Client)),
		kgo.OnPartitionsLost(partitionsLost(logger.Client)),
	)

	return newClient(opts, logger.Client), nil
}

// Rebalance hooks only log. The per-record CommitRecords calls in the
// consumer loops are the sole commit authority: kgo tracks the highest
// polled offset as "uncommitted", so flushing it here on revoke or
// shutdown would also commit records whose offset the loop deliberately
// withheld for re-delivery.
func partitionsAssigned(logger zerolog.Logger) func(context.Context, *kgo.Client, map[string][]int32) {
	return func(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
		logger.Info().Msgf("Partitions assigned: %v", assigned)
	}
}

func partitionsRevoked(logger zerolog.Logger) func(context.Context, *kgo.Client, map[string][]int32) {
	return func(_ context.Context, _ *kgo.Client, revoked map[string][]int32) {
		logger.Warn().Msgf("Partitions revoked, uncommitted records on them will be re-delivered: %v", revoked)
	}
}

func partitionsLost(logger zerolog.Logger) func(context.Context, *kgo.Client, map[string][]int32) {
	return func(_ context.Context, _ *kgo.Client, lost map[string][]int32) {
		logger.Error().Msgf("Partitions lost due to unrecoverable group error: %v", lost)
	}
}

type ConfigurationLoggers struct {
	Client zerolog.Logger
	Driver zerolog.Logger
}

func commonOptions(cfg CommonConfig, logger ConfigurationLoggers) ([]kgo.Opt, error) {
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return nil, err
	}

	opts := []kgo.Opt{
		kgo.ClientID(cfg.ClientID),
		kgo.SeedBrokers(cfg.SeedBrokers...),
		kgo.SoftwareNameAndVersion(cfg.ServiceName, cfg.ServiceVersion),
		kgo.DialTimeout(5 * time.Second),
		kgo.WithLogger(kzerolog.New(&logger.Driver)),
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}.AsMechanism()))
	}

	return opts, nil
}

func applyDefaultsAndValidate(config any) error {
	valueOfConfig := reflect.ValueOf(config)
	if valueOfConfig.Kind() != reflect.Ptr || valueOfConfig.IsNil() || valueOfConfig.Elem().Kind() != reflect.Struct {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EINVAL).
			Errorf("configuration must be a non-nil pointer to a struct: given %s", valueOfConfig.Kind().String())
	}

	if err := defaults.Set(config); err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.ECONFIG).
			Wrapf(err, "failed to set defaults for %s", valueOfConfig.Elem().Type().Name())
	}

	if err := validation.Instance.Struct(config); err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.ECONFIG).
			Wrapf(err, "failed to validate %s", valueOfConfig.Elem().Type().Name())
	}

	return nil
}
