package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters_SamePoint(t *testing.T) {
	p := orb.Point{29.0320, 40.9923}
	assert.Equal(t, 0.0, DistanceMeters(p, p))
}

func TestDistanceMeters_OneDegreeLatitude(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{0, 1}

	// one degree of latitude on a 6371 km sphere
	assert.InDelta(t, 111194.9, DistanceMeters(a, b), 1.0)
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	a := orb.Point{29.0320, 40.9923}
	b := orb.Point{29.0158, 41.0265}

	assert.InDelta(t, DistanceMeters(a, b), DistanceMeters(b, a), 1e-9)
}

func TestHaversine_RoundsToTwoDecimals(t *testing.T) {
	km := Haversine(40.9923, 29.0320, 41.0265, 29.0158)

	assert.InDelta(t, 4.04, km, 0.02)
	assert.Equal(t, km, float64(int(km*100+0.5))/100)
}

func TestLineLengthMeters(t *testing.T) {
	ls := orb.LineString{{0, 0}, {0, 0.01}, {0, 0.02}}

	assert.InDelta(t, 2*DistanceMeters(ls[0], ls[1]), LineLengthMeters(ls), 1e-6)
	assert.Equal(t, 0.0, LineLengthMeters(orb.LineString{{1, 1}}))
}

func TestMidpoint(t *testing.T) {
	mid := Midpoint(orb.Point{10, 20}, orb.Point{12, 24})
	assert.Equal(t, orb.Point{11, 22}, mid)
}

func TestValidPoint(t *testing.T) {
	assert.True(t, ValidPoint(orb.Point{28.97, 41.00}))
	assert.False(t, ValidPoint(orb.Point{181, 0}))
	assert.False(t, ValidPoint(orb.Point{0, -91}))
}
