package store

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter() (*Writer, *[]time.Duration) {
	delays := &[]time.Duration{}
	writer := NewWriter(zerolog.Nop())
	writer.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return writer, delays
}

func transientErr() error {
	return &pgconn.PgError{Code: "08006", Message: "connection failure"}
}

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	writer, delays := newTestWriter()

	calls := 0
	err := writer.withRetry(context.Background(), "op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestWithRetryRecoversFromTransientFault(t *testing.T) {
	writer, delays := newTestWriter()

	calls := 0
	err := writer.withRetry(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 1 * time.Second}, *delays)
}

func TestWithRetryExhaustsAttemptsWithDoublingBackoff(t *testing.T) {
	writer, delays := newTestWriter()

	calls := 0
	err := writer.withRetry(context.Background(), "op", func() error {
		calls++
		return transientErr()
	})

	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
	}, *delays)
	assert.ErrorContains(t, err, "failed after 5 attempts")
}

func TestWithRetryDoesNotRetryNonTransientErrors(t *testing.T) {
	writer, delays := newTestWriter()

	uniqueViolation := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	calls := 0
	err := writer.withRetry(context.Background(), "op", func() error {
		calls++
		return uniqueViolation
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, error(uniqueViolation))
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestWithRetryAbortsOnCancelledBackoff(t *testing.T) {
	writer := NewWriter(zerolog.Nop())
	writer.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	calls := 0
	err := writer.withRetry(context.Background(), "op", func() error {
		calls++
		return transientErr()
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorContains(t, err, "aborted by shutdown")
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		description string
		err         error
		transient   bool
	}{
		{"nil", nil, false},
		{"connection exception class", &pgconn.PgError{Code: "08000"}, true},
		{"connection does not exist", &pgconn.PgError{Code: "08003"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"cannot connect now", &pgconn.PgError{Code: "57P03"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"net timeout", &net.DNSError{IsTimeout: true}, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.transient, isTransient(tc.err))
		})
	}
}
