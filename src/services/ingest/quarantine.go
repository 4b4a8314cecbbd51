package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/oops"
	"github.com/twmb/franz-go/pkg/kgo"

	"heartbeat/src/clients/kafka"
	"heartbeat/src/domain"
	"heartbeat/src/platform/perr"
	"heartbeat/src/util"
)

// Quarantine routes rejected messages to a side topic for audit and
// manual replay.
type Quarantine interface {
	Publish(ctx context.Context, errorType domain.ErrorType, raw []byte, cause string) error
}

// Rejects must not slow the hot path; a quarantine lane that blocks
// longer than this is treated as failed.
const quarantineTimeout = 1 * time.Second

// KafkaQuarantine wraps rejected payloads in the InvalidEvent envelope
// and publishes them synchronously, VALIDATION failures to the invalid
// topic and PROCESSING failures to the dlq topic.
type KafkaQuarantine struct {
	client       *kafka.Client
	invalidTopic string
	dlqTopic     string
}

func NewKafkaQuarantine(client *kafka.Client, invalidTopic, dlqTopic string) *KafkaQuarantine {
	return &KafkaQuarantine{
		client:       client,
		invalidTopic: invalidTopic,
		dlqTopic:     dlqTopic,
	}
}

func (q *KafkaQuarantine) Publish(ctx context.Context, errorType domain.ErrorType, raw []byte, cause string) error {
	envelope := domain.NewInvalidEvent(cause, string(raw), errorType)
	payload, err := json.Marshal(envelope)
	if err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EINVAL).
			Wrapf(err, "can't marshal quarantine envelope")
	}

	topic := q.invalidTopic
	if errorType == domain.ErrorTypeProcessing {
		topic = q.dlqTopic
	}

	produceCtx, cancel := context.WithTimeout(ctx, quarantineTimeout)
	defer cancel()

	record := &kgo.Record{Topic: topic, Value: payload}
	if err := q.client.Driver.ProduceSync(produceCtx, record).FirstErr(); err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EIO).
			Wrapf(err, "can't publish quarantine envelope to '%s'", topic)
	}

	return nil
}
