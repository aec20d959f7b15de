package provider

import (
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/cache"
	"github.com/richxcame/route-traffic/pkg/config"
	"github.com/richxcame/route-traffic/pkg/logger"
	"github.com/richxcame/route-traffic/pkg/resilience"
)

// NewFromConfig builds the provider chain in configured order. When a
// shared store is given the chain is wrapped in a SharedCache.
func NewFromConfig(cfg *config.Config, store *cache.Manager) Client {
	retry := resilience.RetryConfigFrom(cfg.Resilience.Retry)
	timeout := cfg.Traffic.FetchTimeout

	var clients []Client
	for _, name := range cfg.Provider.Providers() {
		switch name {
		case NameTomTom:
			clients = append(clients, NewTomTom(cfg.Provider.TomTomBaseURL, cfg.Provider.TomTomAPIKey, timeout, retry))
		case NameHERE:
			clients = append(clients, NewHERE(cfg.Provider.HereBaseURL, cfg.Provider.HereAPIKey, timeout, retry))
		default:
			logger.Warn("Unknown traffic provider ignored", zap.String("provider", name))
		}
	}

	var breakers BreakerFactory
	if cfg.Resilience.CircuitBreaker.Enabled {
		breakers = func(name string) *resilience.CircuitBreaker {
			settings := resilience.SettingsFromConfig("traffic-provider-"+name, cfg.Resilience.CircuitBreaker.SettingsFor(name))
			settings.Upstream = name
			settings.IsSuccessful = IsBreakerSuccess
			return resilience.NewCircuitBreaker(settings, nil)
		}
	}

	chain := NewChain(clients, breakers)
	logger.Info("Traffic provider chain configured",
		zap.String("providers", chain.Name()),
		zap.Bool("circuit_breaker", breakers != nil),
		zap.Bool("shared_cache", store != nil),
	)

	if store == nil {
		return chain
	}
	return NewSharedCache(chain, store, cfg.Provider.SharedCacheTTL)
}
