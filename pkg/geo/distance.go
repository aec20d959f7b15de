package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	earthRadiusKm     = 6371.0
	earthRadiusMeters = earthRadiusKm * 1000
)

// DistanceMeters calculates the great-circle distance in metres between two
// [lon, lat] points using the haversine formula. The result is not rounded so
// it can be accumulated along a polyline.
func DistanceMeters(a, b orb.Point) float64 {
	return earthRadiusMeters * centralAngle(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

// Haversine calculates the great-circle distance in kilometres between two
// coordinates. The result is rounded to two decimal places.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Round(earthRadiusKm*centralAngle(lat1, lon1, lat2, lon2)*100) / 100
}

// LineLengthMeters sums the haversine distance over consecutive points.
func LineLengthMeters(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += DistanceMeters(ls[i-1], ls[i])
	}
	return total
}

// Midpoint returns the arithmetic midpoint of two points. Route segments are
// short enough that the planar average is indistinguishable from the
// spherical midpoint.
func Midpoint(a, b orb.Point) orb.Point {
	return orb.Point{(a.Lon() + b.Lon()) / 2, (a.Lat() + b.Lat()) / 2}
}

// ValidPoint reports whether the point lies inside WGS84 bounds.
func ValidPoint(p orb.Point) bool {
	return p.Lat() >= -90 && p.Lat() <= 90 && p.Lon() >= -180 && p.Lon() <= 180
}

func centralAngle(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
