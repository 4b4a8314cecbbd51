package store

import (
	"context"

	"github.com/samber/oops"

	"heartbeat/src/platform/perr"
	"heartbeat/src/util"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS heartbeat_events (
		event_id         UUID        NOT NULL,
		customer_id      TEXT        NOT NULL,
		event_time       TIMESTAMPTZ NOT NULL,
		heart_rate       INTEGER     NOT NULL,
		quality_flag     TEXT        NOT NULL,
		source_topic     TEXT        NOT NULL,
		source_partition INTEGER     NOT NULL,
		source_offset    BIGINT      NOT NULL,
		payload          JSONB       NOT NULL,
		ingested_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (customer_id, event_id)
	);`,
	`CREATE INDEX IF NOT EXISTS heartbeat_events_event_time_idx
		ON heartbeat_events (event_time);`,
	`CREATE TABLE IF NOT EXISTS anomalies (
		id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		event_id     UUID        NOT NULL,
		customer_id  TEXT        NOT NULL,
		event_time   TIMESTAMPTZ NOT NULL,
		heart_rate   INTEGER     NOT NULL,
		anomaly_type TEXT        NOT NULL,
		severity     TEXT        NOT NULL,
		details      JSONB       NOT NULL,
		detected_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS anomalies_customer_id_idx
		ON anomalies (customer_id, event_time);`,
	`CREATE TABLE IF NOT EXISTS ingest_checkpoint (
		consumer_group TEXT        NOT NULL,
		topic          TEXT        NOT NULL,
		partition      INTEGER     NOT NULL,
		last_offset    BIGINT      NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (consumer_group, topic, partition)
	);`,
}

// EnsureSchema creates the tables and indexes if they are missing.
// Every statement is IF NOT EXISTS, so concurrent consumers racing at
// startup converge on the same schema. It runs in the consumer startup
// path while the store may still be coming up, so transient faults go
// through the same retry envelope as the writes.
func (w *Writer) EnsureSchema(ctx context.Context, ex Execer) error {
	for _, statement := range schemaStatements {
		err := w.withRetry(ctx, "apply schema statement", func() error {
			_, execErr := ex.Exec(ctx, statement)
			return execErr
		})
		if err != nil {
			return oops.
				In(util.GetFunctionName()).
				Code(perr.EINIT).
				Wrapf(err, "failed to apply schema statement")
		}
	}
	return nil
}
