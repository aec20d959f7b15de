package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/logger"
)

const (
	defaultRouteCacheSize = 500
	defaultRouteCacheTTL  = 5 * time.Minute
)

var routeCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "routing_cache_lookups_total",
	Help: "In-process route cache lookups by result",
}, []string{"result"})

// CachedRouter keeps recent routes in an expiring LRU.
type CachedRouter struct {
	next  Router
	cache gcache.Cache
}

// NewCachedRouter wraps next with an LRU of size entries that expire after ttl.
func NewCachedRouter(next Router, size int, ttl time.Duration) *CachedRouter {
	if size <= 0 {
		size = defaultRouteCacheSize
	}
	if ttl <= 0 {
		ttl = defaultRouteCacheTTL
	}
	return &CachedRouter{
		next:  next,
		cache: gcache.New(size).LRU().Expiration(ttl).Build(),
	}
}

// Name returns the wrapped router name
func (c *CachedRouter) Name() string {
	return c.next.Name()
}

// Route serves repeated requests for the same endpoints and profile from memory.
func (c *CachedRouter) Route(ctx context.Context, from, to orb.Point, profile Profile) (Route, error) {
	key := routeKey(from, to, profile)
	if cached, err := c.cache.Get(key); err == nil {
		if route, ok := cached.(Route); ok {
			routeCacheLookupsTotal.WithLabelValues("hit").Inc()
			logger.WithContext(ctx).Debug("Route cache hit", zap.String("key", key))
			return route, nil
		}
	}
	routeCacheLookupsTotal.WithLabelValues("miss").Inc()

	route, err := c.next.Route(ctx, from, to, profile)
	if err != nil {
		return Route{}, err
	}
	if err := c.cache.Set(key, route); err != nil {
		logger.WithContext(ctx).Warn("Failed to cache route", zap.String("key", key), zap.Error(err))
	}
	return route, nil
}

// Len returns the number of cached routes.
func (c *CachedRouter) Len() int {
	return c.cache.Len(true)
}

// Purge drops every cached route.
func (c *CachedRouter) Purge() {
	c.cache.Purge()
}

func routeKey(from, to orb.Point, profile Profile) string {
	return fmt.Sprintf("%s_%s;%s", profile, lonLat(from), lonLat(to))
}
