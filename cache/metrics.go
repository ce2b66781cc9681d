package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts cache traffic. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Lookups       *prometheus.CounterVec
	DurableErrors *prometheus.CounterVec
	DroppedWrites prometheus.Counter
	Invalidations prometheus.Counter
}

// NewMetrics registers the cache collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moodlog_cache_lookups_total",
			Help: "Cache lookups by tier and result",
		}, []string{"tier", "result"}), // result: hit, miss, stale
		DurableErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moodlog_cache_durable_errors_total",
			Help: "Failed operations against the durable cache tier",
		}, []string{"op"}),
		DroppedWrites: f.NewCounter(prometheus.CounterOpts{
			Name: "moodlog_cache_dropped_writes_total",
			Help: "Durable writes dropped because the write queue was full",
		}),
		Invalidations: f.NewCounter(prometheus.CounterOpts{
			Name: "moodlog_cache_invalidations_total",
			Help: "Cache keys invalidated after writes",
		}),
	}
}

func (m *Metrics) lookup(tier, result string) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) durableError(op string) {
	if m == nil {
		return
	}
	m.DurableErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.DroppedWrites.Inc()
}

func (m *Metrics) invalidated(n int) {
	if m == nil {
		return
	}
	m.Invalidations.Add(float64(n))
}
