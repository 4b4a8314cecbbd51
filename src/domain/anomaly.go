package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Anomaly classification labels, in rule priority order.
const (
	AnomalyLowHeartRate  = "LOW_HEART_RATE"
	AnomalyHighHeartRate = "HIGH_HEART_RATE"
	AnomalySpike         = "SPIKE"
)

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// AnomalyEvent is a reading flagged by a rule. It carries every field
// of the originating HeartbeatEvent plus the rule verdict and a small
// open details map (threshold, measured, previous, delta).
type AnomalyEvent struct {
	EventID     uuid.UUID
	CustomerID  string
	Timestamp   time.Time
	HeartRate   int
	AnomalyType string
	Severity    string
	Details     map[string]any
}

type anomalyWire struct {
	EventID     string         `json:"event_id"`
	CustomerID  string         `json:"customer_id"`
	Timestamp   string         `json:"timestamp"`
	HeartRate   int            `json:"heart_rate"`
	AnomalyType string         `json:"anomaly_type"`
	Severity    string         `json:"severity"`
	Details     map[string]any `json:"details"`
}

func (a AnomalyEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(anomalyWire{
		EventID:     a.EventID.String(),
		CustomerID:  a.CustomerID,
		Timestamp:   a.Timestamp.UTC().Format(time.RFC3339Nano),
		HeartRate:   a.HeartRate,
		AnomalyType: a.AnomalyType,
		Severity:    a.Severity,
		Details:     a.Details,
	})
}

func (a *AnomalyEvent) UnmarshalJSON(payload []byte) error {
	var wire anomalyWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return err
	}

	eventID, err := uuid.Parse(wire.EventID)
	if err != nil {
		return validationErrorf("event_id %q is not a valid UUID: %v", wire.EventID, err)
	}
	timestamp, err := time.Parse(time.RFC3339Nano, wire.Timestamp)
	if err != nil {
		return validationErrorf("timestamp %q is not RFC-3339: %v", wire.Timestamp, err)
	}

	*a = AnomalyEvent{
		EventID:     eventID,
		CustomerID:  wire.CustomerID,
		Timestamp:   timestamp.UTC(),
		HeartRate:   wire.HeartRate,
		AnomalyType: wire.AnomalyType,
		Severity:    wire.Severity,
		Details:     wire.Details,
	}
	return nil
}
