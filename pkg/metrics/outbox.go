package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics covers the relay: batch timing, per-event outcomes and how
// long events waited between commit and publish.
type OutboxMetrics struct {
	batches  prometheus.Histogram
	outcomes *prometheus.CounterVec
	lag      *prometheus.HistogramVec
	dlq      *prometheus.CounterVec
}

const (
	outboxPublished = "published"
	outboxRetried   = "retried"
)

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		batches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_batch_duration_seconds",
			Help:    "Time to drain one outbox batch.",
			Buckets: prometheus.DefBuckets,
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_total",
			Help: "Outbox publish attempts by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		lag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outbox_publish_lag_seconds",
			Help:    "Delay between an event's commit and its publish.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 60, 300, 1800},
		}, []string{"event_type"}),
		dlq: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_dead_lettered_total",
			Help: "Outbox events moved to the DLQ by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.batches, m.outcomes, m.lag, m.dlq)
	return m
}

func (m *OutboxMetrics) ObserveBatch(d time.Duration) {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Observe(d.Seconds())
}

// IncPublished counts a delivered event; createdAt feeds the lag histogram
// when known.
func (m *OutboxMetrics) IncPublished(eventType string, createdAt time.Time) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(eventType), outboxPublished).Inc()
	if !createdAt.IsZero() {
		m.lag.WithLabelValues(normalizeLabel(eventType)).Observe(time.Since(createdAt).Seconds())
	}
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(eventType), outboxRetried).Inc()
}

func (m *OutboxMetrics) IncDeadLettered(reason string) {
	if m == nil || m.dlq == nil {
		return
	}
	m.dlq.WithLabelValues(normalizeLabel(reason)).Inc()
}
