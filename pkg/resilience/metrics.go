package resilience

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

const unknownUpstream = "unknown"

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "upstream_breaker_state",
		Help: "Breaker state per upstream (0=closed, 0.5=half-open, 1=open)",
	}, []string{"breaker", "upstream"})

	breakerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_breaker_calls_total",
		Help: "Calls routed through a breaker by outcome (success, failure, rejected)",
	}, []string{"breaker", "upstream", "outcome"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_breaker_transitions_total",
		Help: "Breaker state transitions per upstream",
	}, []string{"breaker", "upstream", "from", "to"})

	retryCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_retry_calls_total",
		Help: "Retried upstream calls by final outcome and the class of the last error",
	}, []string{"upstream", "outcome", "class"})

	retryAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_retry_attempts",
		Help:    "Attempts spent per upstream call",
		Buckets: []float64{1, 2, 3, 4, 5},
	}, []string{"upstream", "outcome"})

	retryBackoff = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_retry_backoff_seconds",
		Help:    "Backoff slept between attempts",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"upstream"})

	breakerSeq uint64
)

func upstreamLabel(upstream string) string {
	if upstream == "" {
		return unknownUpstream
	}
	return upstream
}

func breakerName(base string) string {
	if base != "" {
		return base
	}
	return "breaker-" + strconv.FormatUint(atomic.AddUint64(&breakerSeq, 1), 10)
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 0.5
	case gobreaker.StateOpen:
		return 1
	}
	return -1
}

// breakerMetrics binds the breaker and upstream labels once per breaker.
type breakerMetrics struct {
	name     string
	upstream string
}

func (m breakerMetrics) state(state gobreaker.State) {
	breakerState.WithLabelValues(m.name, m.upstream).Set(stateValue(state))
}

func (m breakerMetrics) transition(from, to gobreaker.State) {
	breakerTransitions.WithLabelValues(m.name, m.upstream, from.String(), to.String()).Inc()
	m.state(to)
}

func (m breakerMetrics) call(outcome string) {
	breakerCalls.WithLabelValues(m.name, m.upstream, outcome).Inc()
}

func recordRetry(upstream string, attempts int, err error) {
	outcome := "success"
	class := ""
	if err != nil {
		outcome = "failure"
		class = ClassifyUpstreamError(err).String()
	}
	retryCalls.WithLabelValues(upstream, outcome, class).Inc()
	retryAttempts.WithLabelValues(upstream, outcome).Observe(float64(attempts))
}
