package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by the counters below.
const (
	OutcomeOK        = "ok"
	OutcomeRefused   = "refused"
	OutcomeMalformed = "malformed_output"
	OutcomeEmpty     = "empty_output"
	OutcomeError     = "error"
	OutcomeAcked     = "acked"
	OutcomeAllFailed = "all_failed"
)

var (
	// GenerationRequests counts calls to the upstream generation service per
	// use case (classify, answer, widget, summary).
	GenerationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yakiwi_generation_requests_total",
		Help: "Calls to the upstream generation service by use case and outcome.",
	}, []string{"use_case", "outcome"})

	// BroadcastPublishes counts whole broadcast operations (not per-relay attempts).
	BroadcastPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yakiwi_broadcast_publish_total",
		Help: "Relay broadcast operations by outcome.",
	}, []string{"outcome"})

	// BroadcastAckSeconds observes time to first relay acknowledgment.
	BroadcastAckSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "yakiwi_broadcast_ack_seconds",
		Help:    "Latency until the first relay acknowledged a broadcast.",
		Buckets: prometheus.DefBuckets,
	})
)
