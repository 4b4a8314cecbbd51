package ingest

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"heartbeat/src/domain"
	"heartbeat/src/platform/perr"
	"heartbeat/src/store"
	"heartbeat/src/util"
)

// Sink persists one validated reading together with its checkpoint.
type Sink interface {
	Persist(ctx context.Context, event domain.HeartbeatEvent, src store.Provenance) (int64, error)
}

// StoreSink writes the heartbeat row and the checkpoint upsert in one
// transaction, so the application-level offset store never points past
// a reading that was not persisted.
type StoreSink struct {
	pool   *pgxpool.Pool
	writer *store.Writer
	group  string
	logger zerolog.Logger
}

func NewStoreSink(pool *pgxpool.Pool, writer *store.Writer, group string, logger zerolog.Logger) *StoreSink {
	return &StoreSink{
		pool:   pool,
		writer: writer,
		group:  group,
		logger: logger,
	}
}

func (s *StoreSink) Persist(ctx context.Context, event domain.HeartbeatEvent, src store.Provenance) (int64, error) {
	conn, err := store.Acquire(ctx, s.pool)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, oops.
			In(util.GetFunctionName()).
			Code(perr.EIO).
			Wrapf(err, "can't begin transaction for heartbeat '%s'", event.EventID)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && rollbackErr != pgx.ErrTxClosed {
			s.logger.Warn().Err(rollbackErr).Msg("Failed to rollback ingest transaction")
		}
	}()

	rows, err := s.writer.InsertHeartbeat(ctx, tx, event, src)
	if err != nil {
		return 0, err
	}
	if err := s.writer.UpsertCheckpoint(ctx, tx, s.group, src); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, oops.
			In(util.GetFunctionName()).
			Code(perr.EIO).
			Wrapf(err, "can't commit transaction for heartbeat '%s'", event.EventID)
	}

	return rows, nil
}
