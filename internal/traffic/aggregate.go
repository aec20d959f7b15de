package traffic

import "math"

// Aggregate is the route-level combination of segment samples.
type Aggregate struct {
	AdjustedDurationSeconds float64 `json:"adjustedDurationSeconds"`
	AggregateDelayFactor    float64 `json:"aggregateDelayFactor"`
}

// AggregateDelay weights each sample's delay factor by its segment length.
// Zero-length segments and non-finite factors are left out of both sums;
// when nothing remains the factor is 1.0.
func AggregateDelay(segments []Segment, samples []Sample, baselineDurationSeconds float64) Aggregate {
	n := len(segments)
	if len(samples) < n {
		n = len(samples)
	}

	var weighted, total float64
	for i := 0; i < n; i++ {
		length := segments[i].LengthKm
		factor := samples[i].DelayFactor
		if length <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
			continue
		}
		weighted += factor * length
		total += length
	}

	factor := 1.0
	if total > 0 {
		factor = weighted / total
	}
	return Aggregate{
		AdjustedDurationSeconds: baselineDurationSeconds * factor,
		AggregateDelayFactor:    factor,
	}
}
