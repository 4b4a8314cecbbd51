// Package store is the write path to PostgreSQL: idempotent inserts
// for heartbeats, append-only inserts for anomalies, and the
// application-level offset checkpoint. Transient faults are retried
// with exponential back-off before they surface to the consumer.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"heartbeat/src/platform/perr"
	"heartbeat/src/util"
)

// Borrowing a connection blocks up to this long before the caller is
// told the pool is exhausted. Sized for slow checkpoints under
// container restarts, not for steady state.
const acquireTimeout = 30 * time.Second

var ErrPoolExhausted = errors.New("connection pool exhausted")

// Acquire borrows a connection, blocking up to acquireTimeout. The
// caller must Release it.
func Acquire(ctx context.Context, pool *pgxpool.Pool) (*pgxpool.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	conn, err := pool.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrPoolExhausted
		}
		return nil, oops.
			In(util.GetFunctionName()).
			Code(perr.EAGAIN).
			Wrapf(err, "can't borrow a connection from the pool")
	}

	return conn, nil
}
