package anomaly

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartbeat/src/domain"
)

func defaultThresholds() Thresholds {
	return Thresholds{Low: 50, High: 140, SpikeDelta: 30}
}

func reading(t *testing.T, rate int) domain.HeartbeatEvent {
	t.Helper()
	event, err := domain.NewHeartbeatEventAt(uuid.New(), "cust_00001", time.Now().UTC(), rate)
	require.NoError(t, err)
	return event
}

func TestRulesEvaluate(t *testing.T) {
	cases := []struct {
		description  string
		rate         int
		history      []int
		expectType   string
		expectNone   bool
		expectSev    string
		expectDetail map[string]any
	}{
		{
			description: "normal reading with no history",
			rate:        72,
			expectNone:  true,
		},
		{
			description: "delta one below the spike threshold",
			rate:        94,
			history:     []int{65},
			expectNone:  true,
		},
		{
			description: "low threshold on the first ever reading",
			rate:        50,
			expectType:  domain.AnomalyLowHeartRate,
			expectSev:   domain.SeverityHigh,
			expectDetail: map[string]any{
				"threshold": 50, "measured": 50,
			},
		},
		{
			description: "low outranks spike",
			rate:        50,
			history:     []int{90},
			expectType:  domain.AnomalyLowHeartRate,
			expectSev:   domain.SeverityHigh,
			expectDetail: map[string]any{
				"threshold": 50, "measured": 50,
			},
		},
		{
			description: "high threshold exactly at the boundary",
			rate:        140,
			expectType:  domain.AnomalyHighHeartRate,
			expectSev:   domain.SeverityHigh,
			expectDetail: map[string]any{
				"threshold": 140, "measured": 140,
			},
		},
		{
			description: "spike against the most recent reading only",
			rate:        100,
			history:     []int{80, 75, 60},
			expectType:  domain.AnomalySpike,
			expectSev:   domain.SeverityMedium,
			expectDetail: map[string]any{
				"delta": 40, "threshold": 30, "previous": 60, "measured": 100,
			},
		},
		{
			description: "downward spike is flagged too",
			rate:        72,
			history:     []int{110},
			expectType:  domain.AnomalySpike,
			expectSev:   domain.SeverityMedium,
			expectDetail: map[string]any{
				"delta": 38, "threshold": 30, "previous": 110, "measured": 72,
			},
		},
		{
			description: "delta exactly at the spike threshold",
			rate:        95,
			history:     []int{65},
			expectType:  domain.AnomalySpike,
			expectSev:   domain.SeverityMedium,
			expectDetail: map[string]any{
				"delta": 30, "threshold": 30, "previous": 65, "measured": 95,
			},
		},
	}

	rules := NewRules(defaultThresholds())

	for _, tc := range cases {
		t.Run(tc.description, func(t *testing.T) {
			event := reading(t, tc.rate)
			verdict := rules.Evaluate(event, tc.history)

			if tc.expectNone {
				assert.Nil(t, verdict)
				return
			}

			require.NotNil(t, verdict)
			assert.Equal(t, tc.expectType, verdict.AnomalyType)
			assert.Equal(t, tc.expectSev, verdict.Severity)
			assert.Equal(t, event.EventID, verdict.EventID)
			assert.Equal(t, event.CustomerID, verdict.CustomerID)
			assert.Equal(t, tc.rate, verdict.HeartRate)
			assert.Equal(t, tc.expectDetail, verdict.Details)
		})
	}
}

func TestRulesEvaluateEmptyHistorySkipsSpike(t *testing.T) {
	rules := NewRules(defaultThresholds())

	// 110 bpm would be a spike against most baselines, but with no
	// history there is nothing to diff against.
	verdict := rules.Evaluate(reading(t, 110), nil)
	assert.Nil(t, verdict)
}
