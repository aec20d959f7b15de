package traffic

import (
	"math/rand"
	"sync"
	"time"

	"github.com/richxcame/route-traffic/pkg/validation"
)

const (
	fallbackFreeFlowSpeed = 50.0
	fallbackConfidence    = 0.3
	arterialThresholdKm   = 5.0
	arterialBaseFactor    = 1.10
	urbanBaseFactor       = 1.25
	rushHourMultiplier    = 1.4
	jitterMin             = 0.85
	jitterSpan            = 0.3
)

// DefaultRushHours are the morning and evening peaks.
var DefaultRushHours = []validation.HourRange{{Start: 7, End: 9}, {Start: 17, End: 19}}

// FallbackPolicy synthesizes low-confidence samples when the provider cannot
// answer. Long segments get the arterial base factor, short ones the urban
// base; rush hours multiply it and a seeded jitter varies the result.
type FallbackPolicy struct {
	clock     Clock
	rushHours []validation.HourRange

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallbackPolicy creates a policy. A zero seed seeds from the clock.
func NewFallbackPolicy(clock Clock, rushHours []validation.HourRange, seed int64) *FallbackPolicy {
	if clock == nil {
		clock = SystemClock{}
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &FallbackPolicy{
		clock:     clock,
		rushHours: rushHours,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// IsRushHour reports whether t falls in one of the configured windows.
func (p *FallbackPolicy) IsRushHour(t time.Time) bool {
	hour := t.Hour()
	for _, w := range p.rushHours {
		if w.Contains(hour) {
			return true
		}
	}
	return false
}

// Sample returns a fallback sample for a segment of lengthKm.
func (p *FallbackPolicy) Sample(lengthKm float64, reason string) Sample {
	now := p.clock.Now()

	factor := urbanBaseFactor
	if lengthKm > arterialThresholdKm {
		factor = arterialBaseFactor
	}
	if p.IsRushHour(now) {
		factor *= rushHourMultiplier
	}

	p.mu.Lock()
	factor *= jitterMin + p.rng.Float64()*jitterSpan
	p.mu.Unlock()

	fallbackSamplesTotal.WithLabelValues(reason).Inc()

	return Sample{
		CurrentSpeed:     fallbackFreeFlowSpeed / factor,
		FreeFlowSpeed:    fallbackFreeFlowSpeed,
		Confidence:       fallbackConfidence,
		DelayFactor:      factor,
		IsFallback:       true,
		FallbackReason:   reason,
		FetchedAtEpochMs: now.UnixMilli(),
	}
}
