package traffic

import (
	"github.com/paulmach/orb"

	"github.com/richxcame/route-traffic/pkg/geo"
)

const (
	defaultMaxSegmentMeters = 1000.0
	defaultMinSegmentMeters = 100.0

	// lengthEpsilon absorbs haversine rounding so a hop of exactly the
	// configured length still closes a segment.
	lengthEpsilon = 1e-6
)

// Partitioner splits a route into bounded-length segments.
type Partitioner struct {
	maxMeters float64
	minMeters float64
}

// NewPartitioner creates a partitioner. Non-positive max falls back to 1 km.
func NewPartitioner(maxMeters, minMeters float64) *Partitioner {
	if maxMeters <= 0 {
		maxMeters = defaultMaxSegmentMeters
	}
	if minMeters < 0 {
		minMeters = 0
	}
	return &Partitioner{maxMeters: maxMeters, minMeters: minMeters}
}

// Partition walks the points accumulating haversine distance and emits a
// segment whenever the accumulated length reaches the maximum or the last
// point is reached. Segments shorter than the minimum are dropped; their
// length is not redistributed. Fewer than two points yields no segments.
func (p *Partitioner) Partition(points orb.LineString) []Segment {
	if len(points) < 2 {
		return []Segment{}
	}

	segments := make([]Segment, 0, 8)
	last := len(points) - 1
	startIdx := 0
	var accumulated float64

	for i := 1; i <= last; i++ {
		accumulated += geo.DistanceMeters(points[i-1], points[i])
		if accumulated < p.maxMeters-lengthEpsilon && i != last {
			continue
		}

		if accumulated >= p.minMeters-lengthEpsilon {
			segments = append(segments, Segment{
				Start:    points[startIdx],
				End:      points[i],
				LengthKm: accumulated / 1000,
				Range:    PointRange{Start: startIdx, End: i},
			})
		}
		startIdx = i
		accumulated = 0
	}

	return segments
}
