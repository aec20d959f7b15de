package eventbus

import "time"

// Subjects for traffic events.
const (
	SubjectRouteAnnotated = "traffic.route.annotated"
	SubjectCacheCleared   = "traffic.cache.cleared"
)

// RouteAnnotatedData is a compact summary of one annotated route.
type RouteAnnotatedData struct {
	AnnotationID            string    `json:"annotation_id"`
	SegmentCount            int       `json:"segment_count"`
	FallbackCount           int       `json:"fallback_count"`
	DistanceMeters          float64   `json:"distance_meters"`
	BaselineDurationSeconds float64   `json:"baseline_duration_seconds"`
	AdjustedDurationSeconds float64   `json:"adjusted_duration_seconds"`
	AggregateDelayFactor    float64   `json:"aggregate_delay_factor"`
	CacheHitRate            float64   `json:"cache_hit_rate"`
	Good                    int       `json:"good"`
	Moderate                int       `json:"moderate"`
	Bad                     int       `json:"bad"`
	AnnotatedAt             time.Time `json:"annotated_at"`
}

// CacheClearedData is emitted when the segment cache is cleared.
type CacheClearedData struct {
	EntriesRemoved int       `json:"entries_removed"`
	SharedRemoved  int       `json:"shared_removed"`
	ClearedAt      time.Time `json:"cleared_at"`
}
