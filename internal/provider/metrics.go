package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_provider_requests_total",
		Help: "Traffic provider flow requests by provider and result",
	}, []string{"provider", "result"})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "traffic_provider_request_duration_seconds",
		Help:    "Latency of traffic provider flow requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	sharedCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_shared_flow_cache_lookups_total",
		Help: "Shared redis flow cache lookups by result",
	}, []string{"result"})
)
