package store

import (
	"context"
	"time"

	"github.com/samber/oops"

	"heartbeat/src/platform/perr"
	"heartbeat/src/util"
)

const (
	maxWriteAttempts = 5
	baseBackoff      = 500 * time.Millisecond
)

// withRetry runs op up to maxWriteAttempts times, doubling the back-off
// after each transient failure. Non-transient failures and context
// cancellation surface immediately.
func (w *Writer) withRetry(ctx context.Context, operation string, op func() error) error {
	delay := baseBackoff

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		if !isTransient(err) {
			return err
		}
		if attempt == maxWriteAttempts {
			w.logger.Error().Err(err).Msgf("'%s' failed after %d attempts", operation, maxWriteAttempts)
			return oops.
				In(util.GetFunctionName()).
				Code(perr.EAGAIN).
				Wrapf(err, "'%s' failed after %d attempts", operation, maxWriteAttempts)
		}

		w.logger.Warn().Err(err).Msgf(
			"Transient fault in '%s' (attempt %d/%d), retrying in %s",
			operation, attempt, maxWriteAttempts, delay,
		)

		if sleepErr := w.sleep(ctx, delay); sleepErr != nil {
			return oops.
				In(util.GetFunctionName()).
				Code(perr.ESHUTDOWN).
				Wrapf(err, "'%s' aborted by shutdown during back-off", operation)
		}
		delay *= 2
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
