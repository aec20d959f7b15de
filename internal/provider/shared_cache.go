package provider

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v4"
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/cache"
	"github.com/richxcame/route-traffic/pkg/logger"
)

// FlowCellResolution buckets flow readings into H3 cells of ~175 m edge,
// matching the typical road segment a provider reports for a point.
const FlowCellResolution = 9

const defaultSharedTTL = 3 * time.Minute

// SharedCache stores provider readings in redis keyed by H3 cell so that
// several instances share one provider quota. Redis failures degrade to a
// direct provider call.
type SharedCache struct {
	next  Client
	store *cache.Manager
	ttl   time.Duration
}

// NewSharedCache wraps next with a redis-backed cache.
func NewSharedCache(next Client, store *cache.Manager, ttl time.Duration) *SharedCache {
	if ttl <= 0 {
		ttl = defaultSharedTTL
	}
	return &SharedCache{next: next, store: store, ttl: ttl}
}

// Unwrap returns the provider behind the cache.
func (s *SharedCache) Unwrap() Client {
	return s.next
}

// Live strips any shared cache from c so the caller always reaches the
// provider itself, as status probes must.
func Live(c Client) Client {
	for {
		sc, ok := c.(*SharedCache)
		if !ok {
			return c
		}
		c = sc.next
	}
}

// Name returns the wrapped provider name
func (s *SharedCache) Name() string {
	return s.next.Name()
}

// FlowAt serves from redis when possible and stores fresh readings.
func (s *SharedCache) FlowAt(ctx context.Context, point orb.Point) (Flow, error) {
	key, ok := s.key(point)
	if !ok {
		return s.next.FlowAt(ctx, point)
	}

	var flow Flow
	err := s.store.Get(ctx, key, &flow)
	switch {
	case err == nil:
		sharedCacheLookupsTotal.WithLabelValues("hit").Inc()
		return flow, nil
	case errors.Is(err, cache.ErrCacheMiss):
		sharedCacheLookupsTotal.WithLabelValues("miss").Inc()
	default:
		sharedCacheLookupsTotal.WithLabelValues("error").Inc()
		logger.WithContext(ctx).Warn("Shared flow cache read failed", zap.String("key", key), zap.Error(err))
	}

	flow, err = s.next.FlowAt(ctx, point)
	if err != nil {
		return Flow{}, err
	}

	if err := s.store.Set(ctx, key, flow, s.ttl); err != nil {
		logger.WithContext(ctx).Warn("Shared flow cache write failed", zap.String("key", key), zap.Error(err))
	}
	return flow, nil
}

// Invalidate drops every shared flow reading.
func (s *SharedCache) Invalidate(ctx context.Context) (int, error) {
	return s.store.Invalidate(ctx, cache.Keys.FlowPattern())
}

// Ping checks the backing redis.
func (s *SharedCache) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *SharedCache) key(point orb.Point) (string, bool) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(point.Lat(), point.Lon()), FlowCellResolution)
	if err != nil {
		return "", false
	}
	return cache.Keys.Flow(s.next.Name(), cell.String()), true
}
