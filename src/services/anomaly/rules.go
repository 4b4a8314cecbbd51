// Package anomaly consumes the raw topic as an independent group and
// flags clinically suspect readings. Detection logic is pure and kept
// apart from the consume loop so it can be tested completely offline.
package anomaly

import (
	"heartbeat/src/domain"
)

// Thresholds configure the rule set per deployment.
type Thresholds struct {
	// Low flags possible bradycardia or sensor detachment.
	Low int
	// High flags possible tachycardia or strenuous exertion.
	High int
	// SpikeDelta flags a sudden jump relative to the previous reading,
	// potentially artefactual (sensor slip) or clinically significant.
	SpikeDelta int
}

// Rules is the stateless rule engine.
//
// Evaluation order is LOW, HIGH, SPIKE; the first match wins. The
// absolute thresholds deliberately outrank the delta rule: when a
// reading is already outside the absolute range, that is the verdict
// to report, not the jump that got it there.
type Rules struct {
	thresholds Thresholds
}

func NewRules(thresholds Thresholds) *Rules {
	return &Rules{thresholds: thresholds}
}

// Evaluate applies the rule set to a single reading. recentRates are
// the subject's last readings, most recent last; it may be empty for
// the subject's first ever event, in which case the SPIKE check is
// skipped. Returns nil when no rule fires.
func (r *Rules) Evaluate(event domain.HeartbeatEvent, recentRates []int) *domain.AnomalyEvent {
	rate := event.HeartRate

	if rate <= r.thresholds.Low {
		return r.verdict(event, domain.AnomalyLowHeartRate, domain.SeverityHigh, map[string]any{
			"threshold": r.thresholds.Low,
			"measured":  rate,
		})
	}

	if rate >= r.thresholds.High {
		return r.verdict(event, domain.AnomalyHighHeartRate, domain.SeverityHigh, map[string]any{
			"threshold": r.thresholds.High,
			"measured":  rate,
		})
	}

	if len(recentRates) > 0 {
		previous := recentRates[len(recentRates)-1]
		delta := rate - previous
		if delta < 0 {
			delta = -delta
		}
		if delta >= r.thresholds.SpikeDelta {
			return r.verdict(event, domain.AnomalySpike, domain.SeverityMedium, map[string]any{
				"delta":     delta,
				"threshold": r.thresholds.SpikeDelta,
				"previous":  previous,
				"measured":  rate,
			})
		}
	}

	return nil
}

func (r *Rules) verdict(event domain.HeartbeatEvent, anomalyType, severity string, details map[string]any) *domain.AnomalyEvent {
	return &domain.AnomalyEvent{
		EventID:     event.EventID,
		CustomerID:  event.CustomerID,
		Timestamp:   event.Timestamp,
		HeartRate:   event.HeartRate,
		AnomalyType: anomalyType,
		Severity:    severity,
		Details:     details,
	}
}
