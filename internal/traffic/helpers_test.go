package traffic

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/richxcame/route-traffic/pkg/config"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubSource answers with fn and counts calls.
type stubSource struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, seg Segment) Sample
}

func (s *stubSource) Fetch(ctx context.Context, seg Segment) Sample {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(ctx, seg)
}

func (s *stubSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func constantSource(factor float64) *stubSource {
	return &stubSource{fn: func(context.Context, Segment) Sample {
		return liveSample(factor)
	}}
}

func liveSample(factor float64) Sample {
	return Sample{CurrentSpeed: 50 / factor, FreeFlowSpeed: 50, Confidence: 0.9, DelayFactor: factor}
}

// northbound builds a route along the 29°E meridian with the given latitude steps.
func northbound(steps ...float64) orb.LineString {
	line := orb.LineString{{29.0, 41.0}}
	lat := 41.0
	for _, s := range steps {
		lat += s
		line = append(line, orb.Point{29.0, lat})
	}
	return line
}

// exactly 1500 m of latitude on the haversine sphere
const step1500 = 1500 / (6371000 * math.Pi / 180)

func testTrafficConfig() config.TrafficConfig {
	return config.TrafficConfig{
		MaxSegmentMeters:   1500,
		MinSegmentMeters:   100,
		CacheTTL:           time.Minute,
		FallbackTTLDivisor: 10,
		CacheMaxSize:       100,
		EvictFraction:      0.1,
		FetchTimeout:       2 * time.Second,
		CoordPrecision:     6,
		RushHours:          "7-9,17-19",
		ThresholdGood:      1.20,
		ThresholdModerate:  1.50,
		FallbackSeed:       42,
	}
}
