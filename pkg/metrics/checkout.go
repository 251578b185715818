package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckoutMetrics tracks checkout saga results.
type CheckoutMetrics struct {
	sessions      *prometheus.CounterVec
	compensations *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout counters.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Checkout attempts by result.",
	}, []string{"result"})
	compensations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_compensations_total",
		Help: "Compensating order deletions by result.",
	}, []string{"result"})
	reg.MustRegister(sessions, compensations)
	return &CheckoutMetrics{sessions: sessions, compensations: compensations}
}

func (m *CheckoutMetrics) IncSession(result string) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CheckoutMetrics) IncCompensation(result string) {
	if m == nil || m.compensations == nil {
		return
	}
	m.compensations.WithLabelValues(normalizeLabel(result)).Inc()
}
