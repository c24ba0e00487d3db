package cache

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	refetches prometheus.Counter
	discarded prometheus.Counter
	evictions prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "supplychainx",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Cache operations by outcome.",
	}, []string{"op"})
	if reg != nil {
		reg.MustRegister(vec)
	}
	return &metrics{
		hits:      vec.WithLabelValues("hit"),
		misses:    vec.WithLabelValues("miss"),
		refetches: vec.WithLabelValues("refetch"),
		discarded: vec.WithLabelValues("discarded_fetch"),
		evictions: vec.WithLabelValues("eviction"),
	}
}
