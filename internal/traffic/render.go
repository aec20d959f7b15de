package traffic

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"
)

// SegmentGeometry returns the route points a segment spans, falling back to
// the straight start-end line when the range does not fit the route.
func SegmentGeometry(route Route, seg Segment) orb.LineString {
	r := seg.Range
	if r.Start < 0 || r.End >= len(route.Points) || r.End <= r.Start {
		return orb.LineString{seg.Start, seg.End}
	}
	line := make(orb.LineString, r.End-r.Start+1)
	copy(line, route.Points[r.Start:r.End+1])
	return line
}

// RenderGeoJSON builds one LineString feature per annotated segment.
func RenderGeoJSON(route Route, result *RouteTrafficResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, s := range result.Segments {
		f := geojson.NewFeature(SegmentGeometry(route, s.Segment))
		f.Properties["segmentIndex"] = i
		f.Properties["condition"] = string(s.Condition)
		f.Properties["delayFactor"] = s.Traffic.DelayFactor
		f.Properties["confidence"] = s.Traffic.Confidence
		f.Properties["currentSpeed"] = s.Traffic.CurrentSpeed
		f.Properties["freeFlowSpeed"] = s.Traffic.FreeFlowSpeed
		f.Properties["fallback"] = s.Traffic.IsFallback
		f.Properties["lengthKm"] = s.Segment.LengthKm
		fc.Append(f)
	}
	return fc
}

// AttachPolylines sets the encoded polyline (precision 5, lat/lon order) of
// every segment.
func AttachPolylines(route Route, result *RouteTrafficResult) {
	for i := range result.Segments {
		line := SegmentGeometry(route, result.Segments[i].Segment)
		coords := make([][]float64, len(line))
		for j, p := range line {
			coords[j] = []float64{p.Lat(), p.Lon()}
		}
		result.Segments[i].Polyline = string(polyline.EncodeCoords(coords))
	}
}
