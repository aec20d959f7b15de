package traffic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_cache_lookups_total",
		Help: "Segment cache lookups by result",
	}, []string{"result"})

	cacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_cache_evictions_total",
		Help: "Segment cache entries removed by reason",
	}, []string{"reason"})

	cacheSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "traffic_cache_size",
		Help: "Current number of entries in the segment cache",
	})

	fallbackSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_fallback_samples_total",
		Help: "Synthesized fallback samples by reason",
	}, []string{"reason"})

	resolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "traffic_resolve_duration_seconds",
		Help:    "Time to resolve samples for every segment of a route",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	})

	routeDelayFactor = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "traffic_route_delay_factor",
		Help:    "Aggregate delay factor of annotated routes",
		Buckets: []float64{1.0, 1.1, 1.2, 1.35, 1.5, 1.75, 2.0, 3.0},
	})
)

func recordLookup(hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

func recordEvictions(reason string, n int) {
	if n > 0 {
		cacheEvictionsTotal.WithLabelValues(reason).Add(float64(n))
	}
}
