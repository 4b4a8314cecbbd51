// Package ingest consumes the raw topic and writes validated readings
// to PostgreSQL. Delivery is at-least-once with idempotent writes: the
// broker offset is committed only after the database transaction, and
// replaying a committed record is a no-op thanks to the conflict-free
// insert.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/twmb/franz-go/pkg/kgo"

	"heartbeat/src/domain"
	"heartbeat/src/platform/metrics"
	"heartbeat/src/platform/perr"
	"heartbeat/src/platform/validation"
	"heartbeat/src/store"
	"heartbeat/src/util"
)

// Committer is the offset-commit slice of the consumer client.
type Committer interface {
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

// Bounds are the deployment-configurable clinically acceptable range.
// Readings inside the hard physiological bounds but outside this range
// are quarantined as validation failures.
type Bounds struct {
	Min int
	Max int
}

type Service struct {
	consumer   *kgo.Client
	committer  Committer
	sink       Sink
	quarantine Quarantine
	bounds     Bounds
	metrics    *metrics.PipelineCounters
	logger     zerolog.Logger
}

type Options struct {
	Consumer   *kgo.Client
	Sink       Sink
	Quarantine Quarantine
	RateMin    int `validate:"gte=0,lte=250"`
	RateMax    int `validate:"gte=0,lte=250,gtefield=RateMin"`
	Counters   *metrics.PipelineCounters
	Logger     zerolog.Logger
}

func NewService(opts *Options) (*Service, error) {
	if err := validation.Instance.Struct(opts); err != nil {
		return nil, oops.
			In(util.GetFunctionName()).
			Code(perr.ECONFIG).
			Wrapf(err, "can't create ingest service: invalid options")
	}

	return &Service{
		consumer:   opts.Consumer,
		committer:  opts.Consumer,
		sink:       opts.Sink,
		quarantine: opts.Quarantine,
		bounds:     Bounds{Min: opts.RateMin, Max: opts.RateMax},
		metrics:    opts.Counters,
		logger:     opts.Logger,
	}, nil
}

// Run polls the raw topic until ctx is cancelled. Fetch-level errors
// are logged and skipped rather than crashing the loop; only client
// closure ends it.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info().
		Int("rate_min", s.bounds.Min).
		Int("rate_max", s.bounds.Max).
		Msg("Ingest consumer started")

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

	s.logger.Info().Msg("Ingest consumer shut down cleanly")
	return nil
}

// handle runs one record through the validate, write, commit pipeline.
//
// Outcome taxonomy:
//   - valid reading, stored: commit.
//   - schema or domain failure: quarantine to the invalid topic, then
//     commit so the bad message is never re-processed.
//   - unexpected processing failure (store down, bug): quarantine to
//     the dlq topic and do NOT commit, the broker re-delivers and the
//     idempotent insert absorbs the replay.
func (s *Service) handle(ctx context.Context, record *kgo.Record) {
	s.metrics.Consumed.Inc()

	src := store.Provenance{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
	}

	event, err := s.validate(record.Value)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			s.rejectInvalid(ctx, record, validationErr.Cause)
			return
		}
		s.rejectToDLQ(ctx, record, err)
		return
	}

	if _, err := s.sink.Persist(ctx, event, src); err != nil {
		s.rejectToDLQ(ctx, record, err)
		return
	}
	s.metrics.Inserts.Inc()

	if err := s.committer.CommitRecords(ctx, record); err != nil {
		s.logger.Error().Err(err).
			Str("topic", record.Topic).
			Int32("partition", record.Partition).
			Int64("offset", record.Offset).
			Msg("Offset commit failed, record will be re-delivered")
	}
}

func (s *Service) validate(payload []byte) (domain.HeartbeatEvent, error) {
	event, err := domain.DecodeHeartbeat(payload)
	if err != nil {
		return domain.HeartbeatEvent{}, err
	}

	if event.HeartRate < s.bounds.Min || event.HeartRate > s.bounds.Max {
		return domain.HeartbeatEvent{}, &domain.ValidationError{
			Cause: fmt.Sprintf("heart_rate %d is outside the configured domain bounds [%d, %d]",
				event.HeartRate, s.bounds.Min, s.bounds.Max),
		}
	}

	return event, nil
}

func (s *Service) rejectInvalid(ctx context.Context, record *kgo.Record, cause string) {
	s.logger.Warn().
		Str("error", cause).
		Str("payload", util.Truncate(string(record.Value), 200)).
		Msg("Validation failure, routing to invalid topic")
	s.metrics.Invalid.Inc()

	if err := s.quarantine.Publish(ctx, domain.ErrorTypeValidation, record.Value, cause); err != nil {
		s.logger.Error().Err(err).Msg("Failed to publish to the invalid topic, record will be re-delivered")
		return
	}

	// Commit so the bad message is never polled again.
	if err := s.committer.CommitRecords(ctx, record); err != nil {
		s.logger.Error().Err(err).Msg("Offset commit failed after quarantine")
	}
}

func (s *Service) rejectToDLQ(ctx context.Context, record *kgo.Record, cause error) {
	s.logger.Error().Err(cause).Msg("Unexpected processing failure, routing to DLQ")
	s.metrics.DLQ.Inc()

	if err := s.quarantine.Publish(ctx, domain.ErrorTypeProcessing, record.Value, cause.Error()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to publish to the dlq topic")
	}
	// No commit: the record stays available for the retry path.
}
