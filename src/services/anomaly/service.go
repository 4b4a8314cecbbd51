package anomaly

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/twmb/franz-go/pkg/kgo"

	"heartbeat/src/domain"
	"heartbeat/src/platform/metrics"
	"heartbeat/src/platform/perr"
	"heartbeat/src/platform/validation"
	"heartbeat/src/util"
)

// Committer is the offset-commit slice of the consumer client.
type Committer interface {
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

type Service struct {
	consumer  *kgo.Client
	committer Committer
	rules     *Rules
	history   *rollingHistory
	sink      Sink
	publisher Publisher
	metrics   *metrics.PipelineCounters
	logger    zerolog.Logger
}

type Options struct {
	Consumer   *kgo.Client
	Thresholds Thresholds
	Sink       Sink
	Publisher  Publisher
	Counters   *metrics.PipelineCounters
	Logger     zerolog.Logger
}

func NewService(opts *Options) (*Service, error) {
	if err := validation.Instance.Struct(opts); err != nil {
		return nil, oops.
			In(util.GetFunctionName()).
			Code(perr.ECONFIG).
			Wrapf(err, "can't create anomaly service: invalid options")
	}

	return &Service{
		consumer:  opts.Consumer,
		committer: opts.Consumer,
		rules:     NewRules(opts.Thresholds),
		history:   newRollingHistory(),
		sink:      opts.Sink,
		publisher: opts.Publisher,
		metrics:   opts.Counters,
		logger:    opts.Logger,
	}, nil
}

// Run polls the raw topic until ctx is cancelled. The detector runs in
// its own consumer group, so its offset position is independent of the
// database writer: both see every message.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info().
		Int("low_threshold", s.rules.thresholds.Low).
		Int("high_threshold", s.rules.thresholds.High).
		Int("spike_delta", s.rules.thresholds.SpikeDelta).
		Msg("Anomaly detector started")

	for ctx.Err() == nil {
		fetches := s.consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			break
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).
				Str("topic", topic).
				Int32("partition", partition).
				Msg("Fetch error")
		})

		fetches.EachRecord(func(record *kgo.Record) {
			s.handle(ctx, record)
		})
	}

	s.logger.Info().Msg("Anomaly detector shut down cleanly")
	return nil
}

// handle evaluates one record.
//
// Malformed payloads are skipped quietly and committed: the database
// writer group has already quarantined them. The rolling history is
// updated for every decodable reading, anomalous or not, so the delta
// rule always compares against what the device actually reported.
// When persisting or publishing a verdict fails the offset is not
// committed and the record is re-delivered.
func (s *Service) handle(ctx context.Context, record *kgo.Record) {
	event, err := domain.DecodeHeartbeat(record.Value)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Skipping malformed message")
		s.commit(ctx, record)
		return
	}

	verdict := s.rules.Evaluate(event, s.history.Recent(event.CustomerID))
	s.history.Observe(event.CustomerID, event.HeartRate)

	if verdict != nil {
		s.logger.Info().
			Str("customer_id", verdict.CustomerID).
			Str("type", verdict.AnomalyType).
			Str("severity", verdict.Severity).
			Int("heart_rate", verdict.HeartRate).
			Msg("Anomaly detected")

		if err := s.sink.Persist(ctx, *verdict); err != nil {
			s.logger.Error().Err(err).Msg("Failed to persist anomaly, record will be re-delivered")
			return
		}
		// Counted once stored, the scrape must see the anomaly even if
		// the publish right after it fails.
		s.metrics.Anomalies.WithLabelValues(verdict.AnomalyType, verdict.Severity).Inc()

		if err := s.publisher.Publish(ctx, *verdict); err != nil {
			s.logger.Error().Err(err).Msg("Failed to publish anomaly, record will be re-delivered")
			return
		}
	}

	s.commit(ctx, record)
}

func (s *Service) commit(ctx context.Context, record *kgo.Record) {
	if err := s.committer.CommitRecords(ctx, record); err != nil {
		s.logger.Error().Err(err).
			Str("topic", record.Topic).
			Int32("partition", record.Partition).
			Int64("offset", record.Offset).
			Msg("Offset commit failed, record will be re-delivered")
	}
}
