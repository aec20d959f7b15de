package traffic

import (
	"github.com/paulmach/orb"

	"github.com/richxcame/route-traffic/pkg/geo"
)

// Route is a precomputed route handed in by the routing service.
// Points are [lon, lat] pairs.
type Route struct {
	Points          orb.LineString `json:"points"`
	DurationSeconds float64        `json:"durationSeconds"`
	DistanceMeters  float64        `json:"distanceMeters"`
}

// PointRange is the slice of route point indices a segment spans.
// Start is inclusive, End is the index of the segment's last point, which is
// also the Start of the following segment. Consecutive ranges therefore share
// no edge.
type PointRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Segment is a bounded-length slice of a route.
type Segment struct {
	Start    orb.Point  `json:"start"`
	End      orb.Point  `json:"end"`
	LengthKm float64    `json:"lengthKm"`
	Range    PointRange `json:"pointRange"`
}

// Midpoint is the point the traffic provider is queried with.
func (s Segment) Midpoint() orb.Point {
	return geo.Midpoint(s.Start, s.End)
}

// Fallback reasons attached to synthesized samples.
const (
	ReasonTimeout       = "timeout"
	ReasonCanceled      = "canceled"
	ReasonAuth          = "auth_rejected"
	ReasonRateLimited   = "rate_limited"
	ReasonMalformed     = "malformed"
	ReasonCircuitOpen   = "circuit_open"
	ReasonUpstream      = "upstream_error"
	ReasonNotConfigured = "not_configured"
)

// Sample is one traffic reading for a segment.
type Sample struct {
	CurrentSpeed     float64 `json:"currentSpeed"`
	FreeFlowSpeed    float64 `json:"freeFlowSpeed"`
	Confidence       float64 `json:"confidence"`
	DelayFactor      float64 `json:"delayFactor"`
	IsFallback       bool    `json:"fallback"`
	FallbackReason   string  `json:"fallbackReason,omitempty"`
	FetchedAtEpochMs int64   `json:"fetchedAt"`
}

// Condition is the discrete traffic label used for rendering.
type Condition string

const (
	ConditionGood     Condition = "good"
	ConditionModerate Condition = "moderate"
	ConditionBad      Condition = "bad"
)

// AnnotatedSegment pairs a segment with its sample and label.
type AnnotatedSegment struct {
	Segment   Segment   `json:"segment"`
	Traffic   Sample    `json:"traffic"`
	Condition Condition `json:"condition"`
	Polyline  string    `json:"polyline,omitempty"`
}

// Analysis is the per-route condition distribution.
type Analysis struct {
	TotalSegments   int     `json:"totalSegments"`
	Good            int     `json:"good"`
	Moderate        int     `json:"moderate"`
	Bad             int     `json:"bad"`
	GoodPercent     int     `json:"goodPercent"`
	ModeratePercent int     `json:"moderatePercent"`
	BadPercent      int     `json:"badPercent"`
	AverageDelay    float64 `json:"averageDelay"`
}

// RouteTrafficResult is the output of one annotation.
type RouteTrafficResult struct {
	ID                      string             `json:"id"`
	Segments                []AnnotatedSegment `json:"segments"`
	BaselineDurationSeconds float64            `json:"baselineDurationSeconds"`
	AdjustedDurationSeconds float64            `json:"adjustedDurationSeconds"`
	AggregateDelayFactor    float64            `json:"aggregateDelayFactor"`
	DistanceMeters          float64            `json:"distanceMeters"`
	CacheHitRate            float64            `json:"cacheHitRate"`
	Analysis                Analysis           `json:"analysis"`
}

// FallbackCount returns how many segments carry a synthesized sample.
func (r *RouteTrafficResult) FallbackCount() int {
	n := 0
	for _, s := range r.Segments {
		if s.Traffic.IsFallback {
			n++
		}
	}
	return n
}
