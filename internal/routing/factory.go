package routing

import (
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/config"
	"github.com/richxcame/route-traffic/pkg/logger"
	"github.com/richxcame/route-traffic/pkg/resilience"
)

// NewFromConfig returns Google Directions when an API key is configured and
// OSRM otherwise, wrapped in the in-process route cache.
func NewFromConfig(cfg *config.Config) Router {
	var router Router = NewOSRM(cfg.Routing.OSRMBaseURL, cfg.Routing.HTTPTimeout, resilience.RetryConfigFrom(cfg.Resilience.Retry))

	if cfg.Routing.GoogleMapsAPIKey != "" {
		google, err := NewGoogleDirections(cfg.Routing.GoogleMapsAPIKey)
		if err != nil {
			logger.Warn("Google Directions unavailable, using OSRM", zap.Error(err))
		} else {
			router = google
		}
	}

	logger.Info("Routing service configured",
		zap.String("router", router.Name()),
		zap.Int("cache_size", cfg.Routing.CacheSize),
		zap.Duration("cache_ttl", cfg.Routing.CacheTTL),
	)
	return NewCachedRouter(router, cfg.Routing.CacheSize, cfg.Routing.CacheTTL)
}
