package anomaly

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/twmb/franz-go/pkg/kgo"

	"heartbeat/src/clients/kafka"
	"heartbeat/src/domain"
	"heartbeat/src/platform/perr"
	"heartbeat/src/store"
	"heartbeat/src/util"
)

// Sink persists a detected anomaly.
type Sink interface {
	Persist(ctx context.Context, anomaly domain.AnomalyEvent) error
}

// Publisher forwards a detected anomaly to the alerting topic.
type Publisher interface {
	Publish(ctx context.Context, anomaly domain.AnomalyEvent) error
}

// StoreSink appends anomalies on a borrowed pool connection.
type StoreSink struct {
	pool   *pgxpool.Pool
	writer *store.Writer
}

func NewStoreSink(pool *pgxpool.Pool, writer *store.Writer) *StoreSink {
	return &StoreSink{pool: pool, writer: writer}
}

func (s *StoreSink) Persist(ctx context.Context, anomaly domain.AnomalyEvent) error {
	conn, err := store.Acquire(ctx, s.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	return s.writer.InsertAnomaly(ctx, conn, anomaly)
}

const publishTimeout = 1 * time.Second

// KafkaPublisher publishes verdicts synchronously, keyed by
// customer_id so downstream alerting sees per-subject order.
type KafkaPublisher struct {
	client *kafka.Client
	topic  string
}

func NewKafkaPublisher(client *kafka.Client, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, anomaly domain.AnomalyEvent) error {
	payload, err := json.Marshal(anomaly)
	if err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EINVAL).
			Wrapf(err, "can't marshal anomaly '%s'", anomaly.EventID)
	}

	produceCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(anomaly.CustomerID),
		Value: payload,
	}
	if err := p.client.Driver.ProduceSync(produceCtx, record).FirstErr(); err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EIO).
			Wrapf(err, "can't publish anomaly '%s' to '%s'", anomaly.EventID, p.topic)
	}

	return nil
}
