package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineCounters holds every counter the pipeline exports. Each
// process registers the full set on its own registry; counters a
// process never touches simply stay at zero.
type PipelineCounters struct {
	// Produced counts broker-acknowledged deliveries, reported by the
	// asynchronous delivery callback.
	Produced prometheus.Counter
	// ProduceErrors counts permanent delivery failures.
	ProduceErrors prometheus.Counter
	// Consumed counts messages polled from the raw topic.
	Consumed prometheus.Counter
	// Inserts counts heartbeat rows successfully written.
	Inserts prometheus.Counter
	// Invalid counts messages routed to the validation quarantine.
	Invalid prometheus.Counter
	// DLQ counts messages routed to the processing-failure quarantine.
	DLQ prometheus.Counter
	// Anomalies counts detections, labelled by type and severity.
	Anomalies *prometheus.CounterVec
}

func NewPipelineCounters(reg prometheus.Registerer) *PipelineCounters {
	c := &PipelineCounters{
		Produced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heartbeat_messages_produced_total",
			Help: "Total heartbeat messages acknowledged by the broker.",
		}),
		ProduceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heartbeat_produce_errors_total",
			Help: "Total messages that failed delivery confirmation from the broker.",
		}),
		Consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heartbeat_messages_consumed_total",
			Help: "Total messages polled from the raw topic.",
		}),
		Inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heartbeat_db_inserts_total",
			Help: "Total heartbeat events successfully written to PostgreSQL.",
		}),
		Invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heartbeat_invalid_total",
			Help: "Total messages routed to the invalid topic (schema/domain failures).",
		}),
		DLQ: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heartbeat_dlq_total",
			Help: "Total messages routed to the DLQ topic (unexpected processing errors).",
		}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heartbeat_anomalies_total",
			Help: "Total anomalies detected, labelled by type and severity.",
		}, []string{"type", "severity"}),
	}

	reg.MustRegister(
		c.Produced,
		c.ProduceErrors,
		c.Consumed,
		c.Inserts,
		c.Invalid,
		c.DLQ,
		c.Anomalies,
	)

	return c
}
