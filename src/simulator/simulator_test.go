package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartbeat/src/domain"
)

func defaultOptions() Options {
	return Options{
		CustomerCount: 50,
		InvalidRatio:  0,
		HeartRateMin:  45,
		HeartRateMax:  185,
	}
}

func TestCustomerIDPool(t *testing.T) {
	pool := CustomerIDPool(3)

	assert.Equal(t, []string{"cust_00001", "cust_00002", "cust_00003"}, pool)
}

func TestNewStreamRejectsBadOptions(t *testing.T) {
	cases := []struct {
		description string
		mutate      func(*Options)
	}{
		{"zero customers", func(o *Options) { o.CustomerCount = 0 }},
		{"negative invalid ratio", func(o *Options) { o.InvalidRatio = -0.1 }},
		{"invalid ratio above one", func(o *Options) { o.InvalidRatio = 1.5 }},
		{"refresh probability above one", func(o *Options) { o.ActiveRefreshProbability = 2 }},
		{"dynamic window inverted", func(o *Options) {
			o.DynamicCustomers = true
			o.ActiveCustomersMin = 40
			o.ActiveCustomersMax = 10
		}},
	}

	for _, tc := range cases {
		t.Run(tc.description, func(t *testing.T) {
			options := defaultOptions()
			tc.mutate(&options)

			_, err := NewStream(options)
			assert.Error(t, err)
		})
	}
}

func TestNextProducesCleanReadings(t *testing.T) {
	stream, err := NewStream(defaultOptions())
	require.NoError(t, err)

	known := map[string]bool{}
	for _, id := range CustomerIDPool(50) {
		known[id] = true
	}

	for i := 0; i < 2000; i++ {
		event, err := stream.Next()
		require.NoError(t, err)

		assert.True(t, known[event.CustomerID], "unknown subject %s", event.CustomerID)
		assert.GreaterOrEqual(t, event.HeartRate, 45)
		assert.LessOrEqual(t, event.HeartRate, 185)
		assert.Equal(t, time.UTC, event.Timestamp.Location())
	}
}

func TestNextInjectsOnlyKnownInvalidValues(t *testing.T) {
	options := defaultOptions()
	options.InvalidRatio = 1
	stream, err := NewStream(options)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		event, err := stream.Next()
		require.NoError(t, err, "injected values stay inside the hard model bounds")
		assert.Contains(t, []int{28, 222}, event.HeartRate)
	}
}

func TestNextTimestampsAreNeverInTheFuture(t *testing.T) {
	stream, err := NewStream(defaultOptions())
	require.NoError(t, err)

	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stream.now = func() time.Time { return frozen }

	var skewed int
	for i := 0; i < 2000; i++ {
		event, err := stream.Next()
		require.NoError(t, err)

		assert.False(t, event.Timestamp.After(frozen))
		if event.Timestamp.Before(frozen) {
			skewed++
			diff := frozen.Sub(event.Timestamp)
			assert.GreaterOrEqual(t, diff, 1*time.Second)
			assert.LessOrEqual(t, diff, 8*time.Second)
		}
	}

	// Roughly 5% of events carry skew; with 2000 draws the count is
	// essentially never zero.
	assert.Greater(t, skewed, 0)
	assert.Less(t, skewed, 400)
}

func TestDynamicModeEmitsFromBoundedSubset(t *testing.T) {
	options := defaultOptions()
	options.DynamicCustomers = true
	options.ActiveCustomersMin = 5
	options.ActiveCustomersMax = 10
	options.ActiveRefreshProbability = 0

	stream, err := NewStream(options)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 2000; i++ {
		event, err := stream.Next()
		require.NoError(t, err)
		seen[event.CustomerID] = true
	}

	assert.LessOrEqual(t, len(seen), 10, "with refreshes disabled the active subset never changes")
}

func TestStaticModeKeepsWholePoolActive(t *testing.T) {
	options := defaultOptions()
	options.CustomerCount = 5

	stream, err := NewStream(options)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 2000; i++ {
		event, err := stream.Next()
		require.NoError(t, err)
		seen[event.CustomerID] = true
	}

	assert.Len(t, seen, 5)
}

func TestBaselinesAreStablePerSubject(t *testing.T) {
	stream, err := NewStream(defaultOptions())
	require.NoError(t, err)

	for id, baseline := range stream.baselines {
		assert.GreaterOrEqual(t, baseline, 50, "baseline for %s", id)
		assert.LessOrEqual(t, baseline, 100, "baseline for %s", id)
	}
}

func TestNextYieldsValidDomainEvents(t *testing.T) {
	stream, err := NewStream(defaultOptions())
	require.NoError(t, err)

	event, err := stream.Next()
	require.NoError(t, err)

	_, err = domain.NewHeartbeatEventAt(event.EventID, event.CustomerID, event.Timestamp, event.HeartRate)
	assert.NoError(t, err)
}
