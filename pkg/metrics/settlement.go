package metrics

import "github.com/prometheus/client_golang/prometheus"

// SettlementMetrics counts payment notification outcomes.
type SettlementMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement outcome counter.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_settlement_outcomes_total",
		Help: "Payment notifications processed by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(outcomes)
	return &SettlementMetrics{outcomes: outcomes}
}

// IncOutcome increments the counter for the named outcome.
func (m *SettlementMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}
