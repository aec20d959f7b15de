package traffic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/config"
	"github.com/richxcame/route-traffic/pkg/eventbus"
	"github.com/richxcame/route-traffic/pkg/geo"
	"github.com/richxcame/route-traffic/pkg/logger"
	"github.com/richxcame/route-traffic/pkg/tracing"
)

const eventSource = "route-traffic"

// ErrInvalidRoute is returned for routes that cannot be partitioned.
var ErrInvalidRoute = errors.New("route must contain at least 2 valid points")

// SharedCache is an optional second-level cache cleared together with the
// in-process one.
type SharedCache interface {
	Invalidate(ctx context.Context) (int, error)
}

// Service runs the annotation pipeline: partition, resolve, aggregate and
// classify.
type Service struct {
	partitioner   *Partitioner
	resolver      *Resolver
	cache         *Cache
	source        Source
	thresholds    Thresholds
	sweepInterval time.Duration
	clock         Clock

	publisher eventbus.Publisher
	shared    SharedCache
}

// NewService wires the pipeline from traffic configuration.
func NewService(cfg config.TrafficConfig, source Source, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	cache := NewCache(cfg.CacheMaxSize, cfg.EvictFraction, clock)
	thresholds := Thresholds{Good: cfg.ThresholdGood, Moderate: cfg.ThresholdModerate}
	if thresholds.Good <= 0 || thresholds.Moderate < thresholds.Good {
		thresholds = DefaultThresholds()
	}

	return &Service{
		partitioner: NewPartitioner(cfg.MaxSegmentMeters, cfg.MinSegmentMeters),
		resolver: NewResolver(cache, source, NewFingerprinter(cfg.CoordPrecision, cfg.UndirectedKeys), ResolverConfig{
			CacheTTL:           cfg.CacheTTL,
			FallbackTTLDivisor: cfg.FallbackTTLDivisor,
			FetchTimeout:       cfg.FetchTimeout,
		}),
		cache:         cache,
		source:        source,
		thresholds:    thresholds,
		sweepInterval: cfg.SweepInterval,
		clock:         clock,
		publisher:     eventbus.NoopPublisher{},
	}
}

// SetPublisher enables route and cache events.
func (s *Service) SetPublisher(p eventbus.Publisher) {
	if p != nil {
		s.publisher = p
	}
}

// SetSharedCache registers a cache that Clear also empties.
func (s *Service) SetSharedCache(c SharedCache) {
	s.shared = c
}

// Start launches the periodic cache sweep.
func (s *Service) Start() {
	s.cache.StartSweeper(s.sweepInterval)
}

// Close stops the sweep.
func (s *Service) Close() {
	s.cache.Stop()
}

// Annotate partitions the route, resolves traffic for every segment and
// combines the samples. Only a malformed route is an error; provider
// failures show up as fallback samples.
func (s *Service) Annotate(ctx context.Context, route Route) (*RouteTrafficResult, error) {
	if err := validateRoute(route); err != nil {
		return nil, err
	}

	var result *RouteTrafficResult
	err := tracing.TraceBusinessLogic(ctx, tracerName, "traffic.Annotate", []attribute.KeyValue{
		tracing.DistanceKey.Float64(route.DistanceMeters),
		tracing.DurationKey.Float64(route.DurationSeconds),
	}, func(ctx context.Context) error {
		result = s.annotate(ctx, route)
		tracing.AddSpanAttributes(ctx,
			tracing.SegmentCountKey.Int(len(result.Segments)),
			tracing.DelayFactorKey.Float64(result.AggregateDelayFactor),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	routeDelayFactor.Observe(result.AggregateDelayFactor)
	logger.WithContext(ctx).Info("Route annotated",
		zap.String("annotation_id", result.ID),
		zap.Int("segments", len(result.Segments)),
		zap.Int("fallbacks", result.FallbackCount()),
		zap.Float64("cache_hit_rate", result.CacheHitRate),
		zap.Float64("aggregate_delay_factor", result.AggregateDelayFactor),
	)
	s.publishAnnotated(ctx, result)
	return result, nil
}

func (s *Service) annotate(ctx context.Context, route Route) *RouteTrafficResult {
	segments := s.partitioner.Partition(route.Points)
	resolution := s.resolver.Resolve(ctx, segments)
	agg := AggregateDelay(segments, resolution.Samples, route.DurationSeconds)

	annotated := make([]AnnotatedSegment, len(segments))
	for i, seg := range segments {
		annotated[i] = AnnotatedSegment{
			Segment:   seg,
			Traffic:   resolution.Samples[i],
			Condition: s.thresholds.Classify(resolution.Samples[i].DelayFactor),
		}
	}

	distance := route.DistanceMeters
	if distance <= 0 {
		distance = geo.LineLengthMeters(route.Points)
	}

	return &RouteTrafficResult{
		ID:                      uuid.NewString(),
		Segments:                annotated,
		BaselineDurationSeconds: route.DurationSeconds,
		AdjustedDurationSeconds: agg.AdjustedDurationSeconds,
		AggregateDelayFactor:    agg.AggregateDelayFactor,
		DistanceMeters:          distance,
		CacheHitRate:            resolution.HitRate(),
		Analysis:                Analyze(annotated),
	}
}

// FlowAt returns a provider reading for one point, bypassing the segment cache.
func (s *Service) FlowAt(ctx context.Context, point orb.Point) Sample {
	return s.source.Fetch(ctx, Segment{Start: point, End: point})
}

// Stats returns the cache snapshot.
func (s *Service) Stats() Snapshot {
	return s.cache.Snapshot()
}

// ClearResult reports what Clear removed.
type ClearResult struct {
	EntriesRemoved int `json:"entriesRemoved"`
	SharedRemoved  int `json:"sharedRemoved"`
}

// Clear empties the segment cache, resets its counters and drops the shared
// cache when one is registered.
func (s *Service) Clear(ctx context.Context) (ClearResult, error) {
	res := ClearResult{EntriesRemoved: s.cache.Clear()}

	var sharedErr error
	if s.shared != nil {
		n, err := s.shared.Invalidate(ctx)
		if err != nil {
			sharedErr = fmt.Errorf("invalidate shared flow cache: %w", err)
		}
		res.SharedRemoved = n
	}

	logger.WithContext(ctx).Info("Traffic cache cleared",
		zap.Int("entries_removed", res.EntriesRemoved),
		zap.Int("shared_removed", res.SharedRemoved),
	)
	s.publish(ctx, eventbus.SubjectCacheCleared, eventbus.CacheClearedData{
		EntriesRemoved: res.EntriesRemoved,
		SharedRemoved:  res.SharedRemoved,
		ClearedAt:      s.clock.Now().UTC(),
	})
	return res, sharedErr
}

// LogCacheStatus writes the cache counters at debug level.
func (s *Service) LogCacheStatus() {
	snap := s.cache.Snapshot()
	logger.Debug("Traffic cache status",
		zap.String("size", fmt.Sprintf("%d/%d", snap.Size, snap.MaxSize)),
		zap.Int("hit_rate", snap.HitRate),
		zap.Int64("hits", snap.HitCount),
		zap.Int64("total_requests", snap.TotalRequests),
		zap.Int64("api_calls", snap.APICallCount),
		zap.Int64("errors", snap.ErrorCount),
		zap.Int("error_rate", snap.ErrorRate),
		zap.Int64("fallbacks", snap.FallbackCount),
		zap.Int("fallback_rate", snap.FallbackRate),
	)
}

func (s *Service) publishAnnotated(ctx context.Context, r *RouteTrafficResult) {
	s.publish(ctx, eventbus.SubjectRouteAnnotated, eventbus.RouteAnnotatedData{
		AnnotationID:            r.ID,
		SegmentCount:            len(r.Segments),
		FallbackCount:           r.FallbackCount(),
		DistanceMeters:          r.DistanceMeters,
		BaselineDurationSeconds: r.BaselineDurationSeconds,
		AdjustedDurationSeconds: r.AdjustedDurationSeconds,
		AggregateDelayFactor:    r.AggregateDelayFactor,
		CacheHitRate:            r.CacheHitRate,
		Good:                    r.Analysis.Good,
		Moderate:                r.Analysis.Moderate,
		Bad:                     r.Analysis.Bad,
		AnnotatedAt:             s.clock.Now().UTC(),
	})
}

func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	event, err := eventbus.NewEvent(subject, eventSource, data)
	if err != nil {
		logger.WithContext(ctx).Warn("Failed to build event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		logger.WithContext(ctx).Warn("Failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

func validateRoute(route Route) error {
	if len(route.Points) < 2 {
		return ErrInvalidRoute
	}
	for _, p := range route.Points {
		if !geo.ValidPoint(p) {
			return fmt.Errorf("%w: point [%f, %f] out of range", ErrInvalidRoute, p.Lon(), p.Lat())
		}
	}
	if route.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidRoute)
	}
	return nil
}
