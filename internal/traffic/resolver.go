package traffic

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/richxcame/route-traffic/pkg/logger"
)

const (
	defaultCacheTTL           = time.Minute
	defaultFallbackTTLDivisor = 10
	defaultFetchTimeout       = 10 * time.Second
)

// ResolverConfig tunes cache lifetimes and per-fetch deadlines.
type ResolverConfig struct {
	CacheTTL           time.Duration
	FallbackTTLDivisor int
	FetchTimeout       time.Duration
}

// Resolution holds one sample per input segment, in input order.
type Resolution struct {
	Samples []Sample
	Hits    int
	Misses  int
	Fetched int
}

// HitRate is the share of segments served from cache in this resolution.
func (r Resolution) HitRate() float64 {
	if len(r.Samples) == 0 {
		return 0
	}
	return float64(r.Hits) / float64(len(r.Samples))
}

// Resolver serves segment samples from the cache and fetches the misses
// concurrently.
type Resolver struct {
	cache       *Cache
	source      Source
	keys        Fingerprinter
	ttl         time.Duration
	fallbackTTL time.Duration
	timeout     time.Duration
}

// NewResolver creates a resolver.
func NewResolver(cache *Cache, source Source, keys Fingerprinter, cfg ResolverConfig) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.FallbackTTLDivisor < 1 {
		cfg.FallbackTTLDivisor = defaultFallbackTTLDivisor
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &Resolver{
		cache:       cache,
		source:      source,
		keys:        keys,
		ttl:         cfg.CacheTTL,
		fallbackTTL: cfg.CacheTTL / time.Duration(cfg.FallbackTTLDivisor),
		timeout:     cfg.FetchTimeout,
	}
}

// Resolve returns exactly one sample per segment. Segments sharing a
// fingerprint are fetched once. Each fetch gets its own timeout; a cancelled
// ctx turns outstanding fetches into fallbacks, which are not cached.
func (r *Resolver) Resolve(ctx context.Context, segments []Segment) Resolution {
	start := time.Now()
	defer func() { resolveDuration.Observe(time.Since(start).Seconds()) }()

	res := Resolution{Samples: make([]Sample, len(segments))}
	keys := make([]string, len(segments))
	pending := make(map[string][]int)
	order := make([]string, 0)

	for i, seg := range segments {
		keys[i] = r.keys.Key(seg)
		if sample, ok := r.cache.Get(keys[i]); ok {
			res.Samples[i] = sample
			res.Hits++
			continue
		}
		res.Misses++
		if _, seen := pending[keys[i]]; !seen {
			order = append(order, keys[i])
		}
		pending[keys[i]] = append(pending[keys[i]], i)
	}

	if len(order) == 0 {
		return res
	}

	fetched := make([]Sample, len(order))
	g, gctx := errgroup.WithContext(ctx)
	for j, key := range order {
		seg := segments[pending[key][0]]
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, r.timeout)
			defer cancel()
			fetched[j] = r.source.Fetch(fctx, seg)
			return nil
		})
	}
	// Fetch never fails, so Wait only synchronizes.
	_ = g.Wait()

	for j, key := range order {
		sample := fetched[j]
		r.cache.RecordFetch(sample)
		if !(sample.IsFallback && sample.FallbackReason == ReasonCanceled) {
			r.cache.Put(key, sample, r.ttlFor(sample))
		}
		for _, i := range pending[key] {
			res.Samples[i] = sample
		}
	}
	res.Fetched = len(order)

	logger.WithContext(ctx).Debug("Resolved segment traffic",
		zap.Int("segments", len(segments)),
		zap.Int("hits", res.Hits),
		zap.Int("misses", res.Misses),
		zap.Int("fetched", res.Fetched),
	)
	return res
}

func (r *Resolver) ttlFor(s Sample) time.Duration {
	if s.IsFallback {
		return r.fallbackTTL
	}
	return r.ttl
}
