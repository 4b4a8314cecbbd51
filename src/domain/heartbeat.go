// Package domain holds the typed event records flowing through the
// pipeline. Values are immutable after construction: constructors
// validate, and nothing exposes a setter.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Hard physiological bounds enforced at construction. The softer,
// deployment-configurable bounds are applied by the ingest consumer.
const (
	HeartRateHardMin = 0
	HeartRateHardMax = 250
)

// ValidationError marks input-data failures (schema or invariant
// violations) as distinct from infrastructure errors, so consumers can
// route them to the validation quarantine lane.
type ValidationError struct {
	Cause string
}

func (e *ValidationError) Error() string {
	return e.Cause
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Cause: fmt.Sprintf(format, args...)}
}

// HeartbeatEvent is a single heart-rate reading produced by the
// synthetic sensor simulator.
type HeartbeatEvent struct {
	EventID    uuid.UUID
	CustomerID string
	Timestamp  time.Time
	HeartRate  int
}

// NewHeartbeatEvent builds a reading captured now, with a fresh v4
// event id. CustomerID is trimmed and must be non-empty; the rate must
// sit inside the hard bounds.
func NewHeartbeatEvent(customerID string, heartRate int) (HeartbeatEvent, error) {
	return makeHeartbeatEvent(uuid.New(), customerID, time.Now().UTC(), heartRate)
}

// NewHeartbeatEventAt is the fully specified constructor, used when
// decoding wire payloads and by the simulator's clock-skew path.
func NewHeartbeatEventAt(eventID uuid.UUID, customerID string, timestamp time.Time, heartRate int) (HeartbeatEvent, error) {
	return makeHeartbeatEvent(eventID, customerID, timestamp, heartRate)
}

func makeHeartbeatEvent(eventID uuid.UUID, customerID string, timestamp time.Time, heartRate int) (HeartbeatEvent, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return HeartbeatEvent{}, validationErrorf("customer_id cannot be empty or whitespace")
	}

	if heartRate < HeartRateHardMin || heartRate > HeartRateHardMax {
		return HeartbeatEvent{}, validationErrorf(
			"heart_rate %d is outside hard physiological bounds [%d, %d]",
			heartRate, HeartRateHardMin, HeartRateHardMax,
		)
	}

	return HeartbeatEvent{
		EventID:    eventID,
		CustomerID: customerID,
		Timestamp:  timestamp.UTC(),
		HeartRate:  heartRate,
	}, nil
}

type heartbeatWire struct {
	EventID    string `json:"event_id"`
	CustomerID string `json:"customer_id"`
	Timestamp  string `json:"timestamp"`
	HeartRate  *int   `json:"heart_rate"`
}

// MarshalJSON emits the wire shape used on every topic: event_id,
// customer_id, RFC-3339 UTC timestamp, heart_rate.
func (e HeartbeatEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(heartbeatWire{
		EventID:    e.EventID.String(),
		CustomerID: e.CustomerID,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
		HeartRate:  &e.HeartRate,
	})
}

// DecodeHeartbeat parses a raw topic payload. Unknown keys are
// ignored; missing required keys and malformed values fail with a
// *ValidationError, as do constructor invariant violations.
func DecodeHeartbeat(payload []byte) (HeartbeatEvent, error) {
	var wire heartbeatWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return HeartbeatEvent{}, validationErrorf("payload is not a valid JSON object: %v", err)
	}

	if wire.EventID == "" {
		return HeartbeatEvent{}, validationErrorf("missing required key 'event_id'")
	}
	if wire.CustomerID == "" {
		return HeartbeatEvent{}, validationErrorf("missing required key 'customer_id'")
	}
	if wire.Timestamp == "" {
		return HeartbeatEvent{}, validationErrorf("missing required key 'timestamp'")
	}
	if wire.HeartRate == nil {
		return HeartbeatEvent{}, validationErrorf("missing required key 'heart_rate'")
	}

	eventID, err := uuid.Parse(wire.EventID)
	if err != nil {
		return HeartbeatEvent{}, validationErrorf("event_id %q is not a valid UUID: %v", wire.EventID, err)
	}

	timestamp, err := time.Parse(time.RFC3339Nano, wire.Timestamp)
	if err != nil {
		return HeartbeatEvent{}, validationErrorf("timestamp %q is not RFC-3339: %v", wire.Timestamp, err)
	}

	return makeHeartbeatEvent(eventID, wire.CustomerID, timestamp, *wire.HeartRate)
}
