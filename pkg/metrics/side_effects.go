package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SideEffectMetrics records after-commit task execution.
type SideEffectMetrics struct {
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewSideEffectMetrics registers the side-effect task metrics.
func NewSideEffectMetrics(reg prometheus.Registerer) *SideEffectMetrics {
	if reg == nil {
		return &SideEffectMetrics{}
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "side_effect_tasks_total",
		Help: "After-commit side-effect tasks by kind and result.",
	}, []string{"task", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "side_effect_task_duration_seconds",
		Help:    "Duration of side-effect tasks in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	reg.MustRegister(results, duration)
	return &SideEffectMetrics{results: results, duration: duration}
}

// IncResult counts a task completion; result is one of ok, failed, dropped.
func (m *SideEffectMetrics) IncResult(task, result string) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(normalizeLabel(task), normalizeLabel(result)).Inc()
}

func (m *SideEffectMetrics) ObserveDuration(task string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(task)).Observe(d.Seconds())
}
