// Package producer is the entry point for all data in the pipeline:
// an infinite loop drawing synthetic readings from the simulator and
// publishing them to the raw topic, with periodic burst windows to
// mimic traffic spikes.
package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/twmb/franz-go/pkg/kgo"

	"heartbeat/src/clients/kafka"
	"heartbeat/src/platform/metrics"
	"heartbeat/src/platform/perr"
	"heartbeat/src/platform/validation"
	"heartbeat/src/simulator"
	"heartbeat/src/util"
)

const (
	// Throughput summary cadence. Per-message logging would drown the
	// operator at the configured rates.
	statsInterval = 5 * time.Second
	// In-flight records get this long to reach the broker on shutdown.
	drainTimeout = 5 * time.Second
)

type Service struct {
	client  *kafka.Client
	stream  *simulator.Stream
	topic   string
	rate    rateConfig
	metrics *metrics.PipelineCounters
	logger  zerolog.Logger
}

type rateConfig struct {
	eventsPerSecond int
	burstMultiplier int
	sleepInterval   time.Duration
}

type Options struct {
	Client          *kafka.Client
	Stream          *simulator.Stream
	Topic           string `validate:"required,min=4,max=128"`
	EventsPerSecond int    `validate:"gte=1,lte=100000"`
	BurstMultiplier int    `validate:"gte=1,lte=100"`
	SleepInterval   time.Duration
	Counters        *metrics.PipelineCounters
	Logger          zerolog.Logger
}

func NewService(opts *Options) (*Service, error) {
	if err := validation.Instance.Struct(opts); err != nil {
		return nil, oops.
			In(util.GetFunctionName()).
			Code(perr.ECONFIG).
			Wrapf(err, "can't create producer service: invalid options")
	}

	return &Service{
		client: opts.Client,
		stream: opts.Stream,
		topic:  opts.Topic,
		rate: rateConfig{
			eventsPerSecond: opts.EventsPerSecond,
			burstMultiplier: opts.BurstMultiplier,
			sleepInterval:   opts.SleepInterval,
		},
		metrics: opts.Counters,
		logger:  opts.Logger,
	}, nil
}

// Run publishes batches until ctx is cancelled, then drains in-flight
// records. Records are keyed by customer_id so all readings of one
// subject land in the same partition and keep their order downstream.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info().
		Str("topic", s.topic).
		Int("target_eps", s.rate.eventsPerSecond).
		Msg("Producer started")

	var batchCount, totalSent int
	lastStats := time.Now()

	for ctx.Err() == nil {
		// Roughly once per 10 second window the batch is amplified to
		// simulate a traffic spike. Sub-second iterations may hit the
		// window more than once, which is fine given the modest
		// multiplier.
		isBurst := time.Now().Unix()%10 == 0
		batchSize := s.rate.eventsPerSecond
		if isBurst {
			batchSize *= s.rate.burstMultiplier
		}

		for i := 0; i < batchSize; i++ {
			if err := s.publishOne(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Failed to hand a record to the producer")
				s.metrics.ProduceErrors.Inc()
			}
		}

		batchCount++
		totalSent += batchSize

		if elapsed := time.Since(lastStats); elapsed >= statsInterval {
			s.logger.Info().
				Int("batches", batchCount).
				Int("events_sent", totalSent).
				Float64("approx_eps", float64(totalSent)/elapsed.Seconds()).
				Bool("burst", isBurst).
				Msg("Producer stats")
			batchCount, totalSent = 0, 0
			lastStats = time.Now()
		}

		select {
		case <-ctx.Done():
		case <-time.After(s.rate.sleepInterval):
		}
	}

	return s.drain()
}

func (s *Service) publishOne(ctx context.Context) error {
	event, err := s.stream.Next()
	if err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EINVAL).
			Wrapf(err, "simulator refused to produce an event")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EINVAL).
			Wrapf(err, "can't marshal heartbeat '%s'", event.EventID)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.CustomerID),
		Value: payload,
	}

	s.client.Driver.Produce(ctx, record, func(r *kgo.Record, produceErr error) {
		if produceErr != nil {
			s.logger.Error().Err(produceErr).
				Str("key", string(r.Key)).
				Msg("Broker rejected record delivery")
			s.metrics.ProduceErrors.Inc()
			return
		}
		s.metrics.Produced.Inc()
	})
	return nil
}

func (s *Service) drain() error {
	s.logger.Info().Msg("Flushing remaining records before exit")

	flushCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := s.client.Driver.Flush(flushCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Some records were NOT flushed before timeout")
		return oops.
			In(util.GetFunctionName()).
			Code(perr.ETIMEDOUT).
			Wrapf(err, "producer drain timed out after %s", drainTimeout)
	}

	s.logger.Info().Msg("Producer shut down cleanly")
	return nil
}
