package metrics

import "github.com/prometheus/client_golang/prometheus"

// TenantCacheMetrics counts tenant resolution cache activity.
type TenantCacheMetrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	invalidations *prometheus.CounterVec
}

// NewTenantCacheMetrics registers the tenant cache counters on the provided registerer.
func NewTenantCacheMetrics(reg prometheus.Registerer) *TenantCacheMetrics {
	if reg == nil {
		return &TenantCacheMetrics{}
	}
	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tenant_cache_hits_total",
		Help: "Tenant resolutions served from cache.",
	})
	misses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tenant_cache_misses_total",
		Help: "Tenant resolutions that required a directory lookup.",
	})
	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_cache_invalidations_total",
		Help: "Tenant cache entries removed by scope.",
	}, []string{"scope"})
	reg.MustRegister(hits, misses, invalidations)
	return &TenantCacheMetrics{hits: hits, misses: misses, invalidations: invalidations}
}

func (m *TenantCacheMetrics) IncHit() {
	if m == nil || m.hits == nil {
		return
	}
	m.hits.Inc()
}

func (m *TenantCacheMetrics) IncMiss() {
	if m == nil || m.misses == nil {
		return
	}
	m.misses.Inc()
}

// AddInvalidations records removed entries for the given scope (host or tenant).
func (m *TenantCacheMetrics) AddInvalidations(scope string, n int) {
	if m == nil || m.invalidations == nil || n <= 0 {
		return
	}
	m.invalidations.WithLabelValues(normalizeLabel(scope)).Add(float64(n))
}
