package traffic

import (
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/logger"
)

const (
	defaultCacheMaxSize  = 100
	defaultEvictFraction = 0.1
)

type cacheEntry struct {
	sample       Sample
	expiresAt    time.Time
	lastAccessed time.Time
	seq          uint64
}

// Snapshot is a read-only view of the cache counters.
type Snapshot struct {
	HitCount      int64 `json:"hitCount"`
	MissCount     int64 `json:"missCount"`
	HitRate       int   `json:"hitRate"`
	TotalRequests int64 `json:"totalRequests"`
	Size          int   `json:"size"`
	MaxSize       int   `json:"maxSize"`
	APICallCount  int64 `json:"apiCallCount"`
	FallbackCount int64 `json:"fallbackCount"`
	ErrorCount    int64 `json:"errorCount"`
	ErrorRate     int   `json:"errorRate"`
	FallbackRate  int   `json:"fallbackRate"`
}

// Cache is a TTL and capacity bounded store of segment samples. Entries are
// evicted in batches by least recent access once the size limit is exceeded.
// A single mutex guards entries and counters so Clear resets both together.
type Cache struct {
	mu            sync.Mutex
	entries       map[string]cacheEntry
	maxSize       int
	evictFraction float64
	clock         Clock
	seq           uint64

	hits      int64
	misses    int64
	apiCalls  int64
	fallbacks int64
	errors    int64

	sweepMu sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewCache creates an empty cache.
func NewCache(maxSize int, evictFraction float64, clock Clock) *Cache {
	if maxSize <= 0 {
		maxSize = defaultCacheMaxSize
	}
	if evictFraction <= 0 || evictFraction > 1 {
		evictFraction = defaultEvictFraction
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Cache{
		entries:       make(map[string]cacheEntry, maxSize),
		maxSize:       maxSize,
		evictFraction: evictFraction,
		clock:         clock,
	}
}

// Get returns a copy of the cached sample. Expired entries are removed and
// reported as absent. A hit refreshes the entry's access time.
func (c *Cache) Get(key string) (Sample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	entry, ok := c.entries[key]
	if ok && now.After(entry.expiresAt) {
		delete(c.entries, key)
		recordEvictions("expired", 1)
		cacheSizeGauge.Set(float64(len(c.entries)))
		ok = false
	}
	if !ok {
		c.misses++
		recordLookup(false)
		return Sample{}, false
	}

	c.seq++
	entry.lastAccessed = now
	entry.seq = c.seq
	c.entries[key] = entry
	c.hits++
	recordLookup(true)
	return entry.sample, true
}

// Put stores a sample for ttl. When the insert pushes the cache over its
// limit, expired entries are purged first and then a batch of the least
// recently accessed entries is evicted.
func (c *Cache) Put(key string, sample Sample, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.seq++
	c.entries[key] = cacheEntry{
		sample:       sample,
		expiresAt:    now.Add(ttl),
		lastAccessed: now,
		seq:          c.seq,
	}

	if len(c.entries) > c.maxSize {
		recordEvictions("expired", c.purgeExpiredLocked(now))
	}
	if len(c.entries) > c.maxSize {
		recordEvictions("capacity", c.evictLocked(key))
	}
	cacheSizeGauge.Set(float64(len(c.entries)))
}

// evictLocked removes size - maxSize + ceil(maxSize*fraction) entries by
// ascending access time, never the key just inserted.
func (c *Cache) evictLocked(keep string) int {
	n := len(c.entries) - c.maxSize + int(math.Ceil(float64(c.maxSize)*c.evictFraction))
	if n > len(c.entries)-1 {
		n = len(c.entries) - 1
	}
	if n <= 0 {
		return 0
	}

	type candidate struct {
		key          string
		lastAccessed time.Time
		seq          uint64
	}
	candidates := make([]candidate, 0, len(c.entries))
	for k, e := range c.entries {
		if k == keep {
			continue
		}
		candidates = append(candidates, candidate{key: k, lastAccessed: e.lastAccessed, seq: e.seq})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].lastAccessed.Equal(candidates[j].lastAccessed) {
			return candidates[i].lastAccessed.Before(candidates[j].lastAccessed)
		}
		return candidates[i].seq < candidates[j].seq
	})

	for _, cand := range candidates[:n] {
		delete(c.entries, cand.key)
	}
	return n
}

func (c *Cache) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.purgeExpiredLocked(c.clock.Now())
	recordEvictions("expired", removed)
	cacheSizeGauge.Set(float64(len(c.entries)))
	return removed
}

// RecordFetch counts one provider fetch and its outcome.
func (c *Cache) RecordFetch(sample Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apiCalls++
	if sample.IsFallback {
		c.fallbacks++
		if sample.FallbackReason != ReasonNotConfigured {
			c.errors++
		}
	}
}

// Clear empties the cache and resets all counters in one step.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[string]cacheEntry, c.maxSize)
	c.hits, c.misses, c.apiCalls, c.fallbacks, c.errors = 0, 0, 0, 0, 0
	cacheSizeGauge.Set(0)
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// MaxSize returns the configured capacity.
func (c *Cache) MaxSize() int {
	return c.maxSize
}

// Snapshot returns the current counters.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	return Snapshot{
		HitCount:      c.hits,
		MissCount:     c.misses,
		HitRate:       percent(c.hits, total),
		TotalRequests: total,
		Size:          len(c.entries),
		MaxSize:       c.maxSize,
		APICallCount:  c.apiCalls,
		FallbackCount: c.fallbacks,
		ErrorCount:    c.errors,
		ErrorRate:     percent(c.errors, total),
		FallbackRate:  percent(c.fallbacks, total),
	}
}

// StartSweeper runs Sweep every interval until Stop is called. Calling it
// again while a sweeper is running is a no-op.
func (c *Cache) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}

	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	if c.stopCh != nil {
		return
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.sweepLoop(interval, c.stopCh, c.doneCh)
}

// Stop halts the sweeper and waits for it to exit. Safe to call repeatedly.
func (c *Cache) Stop() {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	<-c.doneCh
	c.stopCh = nil
	c.doneCh = nil
}

func (c *Cache) sweepLoop(interval time.Duration, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				logger.Debug("Swept expired traffic cache entries",
					zap.Int("removed", removed),
					zap.Int("size", c.Len()),
				)
			}
		case <-stopCh:
			return
		}
	}
}

func percent(part, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
