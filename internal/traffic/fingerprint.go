package traffic

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"
)

const defaultCoordPrecision = 6

// Fingerprinter derives cache keys from a segment's rounded endpoints.
// Keys are direction-sensitive unless undirected is set, in which case the
// two endpoints are ordered canonically first.
type Fingerprinter struct {
	precision  int
	undirected bool
}

// NewFingerprinter creates a fingerprinter rounding to precision decimal digits.
func NewFingerprinter(precision int, undirected bool) Fingerprinter {
	if precision < 0 || precision > 12 {
		precision = defaultCoordPrecision
	}
	return Fingerprinter{precision: precision, undirected: undirected}
}

// Key returns "lat,lon-lat,lon" for the segment start and end.
func (f Fingerprinter) Key(seg Segment) string {
	start := f.point(seg.Start)
	end := f.point(seg.End)
	if f.undirected && end < start {
		start, end = end, start
	}
	return start + "-" + end
}

func (f Fingerprinter) point(p orb.Point) string {
	return f.coord(p.Lat()) + "," + f.coord(p.Lon())
}

func (f Fingerprinter) coord(v float64) string {
	scale := math.Pow10(f.precision)
	v = math.Round(v*scale) / scale
	if v == 0 {
		// avoid "-0.000000"
		v = 0
	}
	return strconv.FormatFloat(v, 'f', f.precision, 64)
}
