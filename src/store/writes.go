package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"heartbeat/src/domain"
	"heartbeat/src/platform/perr"
	"heartbeat/src/util"
)

// Execer is the slice of pgx that the write helpers need. Both
// *pgxpool.Conn and pgx.Tx satisfy it, so the same helper serves
// autocommit writes and the ingest transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	insertHeartbeatSQL = `
		INSERT INTO heartbeat_events (
			event_id, customer_id, event_time, heart_rate,
			quality_flag, source_topic, source_partition, source_offset, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
		ON CONFLICT (customer_id, event_id) DO NOTHING;`

	insertAnomalySQL = `
		INSERT INTO anomalies (
			event_id, customer_id, event_time, heart_rate,
			anomaly_type, severity, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb);`

	upsertCheckpointSQL = `
		INSERT INTO ingest_checkpoint (consumer_group, topic, partition, last_offset)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (consumer_group, topic, partition)
		DO UPDATE SET
			last_offset = EXCLUDED.last_offset,
			updated_at  = NOW();`
)

// Provenance ties a stored row back to the exact broker record that
// produced it.
type Provenance struct {
	Topic     string
	Partition int32
	Offset    int64
}

// Writer bundles the write helpers with their retry policy.
type Writer struct {
	logger zerolog.Logger
	sleep  func(context.Context, time.Duration) error
}

func NewWriter(logger zerolog.Logger) *Writer {
	return &Writer{
		logger: logger,
		sleep:  sleepWithContext,
	}
}

// InsertHeartbeat persists a validated reading. The insert is
// idempotent on (customer_id, event_id), so replaying a record after a
// consumer restart is a no-op; the returned count is 0 for such
// duplicates and 1 for fresh rows. The full wire payload is stored
// verbatim in the payload column for auditing.
func (w *Writer) InsertHeartbeat(ctx context.Context, ex Execer, event domain.HeartbeatEvent, src Provenance) (int64, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, oops.
			In(util.GetFunctionName()).
			Code(perr.EINVAL).
			Wrapf(err, "can't marshal heartbeat '%s' for the payload column", event.EventID)
	}

	var rows int64
	err = w.withRetry(ctx, "insert heartbeat", func() error {
		tag, execErr := ex.Exec(ctx, insertHeartbeatSQL,
			event.EventID, event.CustomerID, event.Timestamp, event.HeartRate,
			"valid", src.Topic, src.Partition, src.Offset, string(payload),
		)
		if execErr != nil {
			return execErr
		}
		rows = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	w.logger.Debug().
		Str("event_id", event.EventID.String()).
		Str("customer_id", event.CustomerID).
		Int("heart_rate", event.HeartRate).
		Int64("rows", rows).
		Msg("Inserted heartbeat")
	return rows, nil
}

// InsertAnomaly appends a rule verdict. event_id is deliberately not
// unique here, an event may in principle be flagged by several rules.
func (w *Writer) InsertAnomaly(ctx context.Context, ex Execer, anomaly domain.AnomalyEvent) error {
	details, err := json.Marshal(anomaly.Details)
	if err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EINVAL).
			Wrapf(err, "can't marshal details of anomaly '%s'", anomaly.EventID)
	}

	err = w.withRetry(ctx, "insert anomaly", func() error {
		_, execErr := ex.Exec(ctx, insertAnomalySQL,
			anomaly.EventID, anomaly.CustomerID, anomaly.Timestamp, anomaly.HeartRate,
			anomaly.AnomalyType, anomaly.Severity, string(details),
		)
		return execErr
	})
	if err != nil {
		return err
	}

	w.logger.Info().
		Str("event_id", anomaly.EventID.String()).
		Str("customer_id", anomaly.CustomerID).
		Str("type", anomaly.AnomalyType).
		Str("severity", anomaly.Severity).
		Int("heart_rate", anomaly.HeartRate).
		Msg("Inserted anomaly")
	return nil
}

// UpsertCheckpoint records the last successfully processed offset per
// (group, topic, partition). It complements the broker-side commit: a
// manual replay can recover the last known good position from here
// even when the broker's offset store is unavailable.
func (w *Writer) UpsertCheckpoint(ctx context.Context, ex Execer, group string, src Provenance) error {
	return w.withRetry(ctx, "upsert checkpoint", func() error {
		_, execErr := ex.Exec(ctx, upsertCheckpointSQL, group, src.Topic, src.Partition, src.Offset)
		return execErr
	})
}
