package traffic

import "math"

const (
	defaultThresholdGood     = 1.20
	defaultThresholdModerate = 1.50
)

// Thresholds are the upper bounds of the Good and Moderate labels.
type Thresholds struct {
	Good     float64
	Moderate float64
}

// DefaultThresholds returns 1.20 / 1.50.
func DefaultThresholds() Thresholds {
	return Thresholds{Good: defaultThresholdGood, Moderate: defaultThresholdModerate}
}

// Classify labels a delay factor: <= Good is good, <= Moderate is moderate,
// anything else is bad.
func (t Thresholds) Classify(delayFactor float64) Condition {
	switch {
	case delayFactor <= t.Good:
		return ConditionGood
	case delayFactor <= t.Moderate:
		return ConditionModerate
	default:
		return ConditionBad
	}
}

// Classify uses the default thresholds.
func Classify(delayFactor float64) Condition {
	return DefaultThresholds().Classify(delayFactor)
}

// Analyze counts conditions across annotated segments.
// AverageDelay is the length-weighted excess delay divided by segment count.
func Analyze(segments []AnnotatedSegment) Analysis {
	a := Analysis{TotalSegments: len(segments)}
	if len(segments) == 0 {
		return a
	}

	var excess float64
	for _, s := range segments {
		switch s.Condition {
		case ConditionGood:
			a.Good++
		case ConditionModerate:
			a.Moderate++
		default:
			a.Bad++
		}
		excess += (s.Traffic.DelayFactor - 1) * s.Segment.LengthKm
	}

	total := float64(len(segments))
	a.GoodPercent = int(math.Round(float64(a.Good) / total * 100))
	a.ModeratePercent = int(math.Round(float64(a.Moderate) / total * 100))
	a.BadPercent = int(math.Round(float64(a.Bad) / total * 100))
	a.AverageDelay = excess / total
	return a
}
