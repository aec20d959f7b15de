package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/richxcame/route-traffic/pkg/redis"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// Manager handles caching operations with JSON serialization
type Manager struct {
	redis redisclient.ClientInterface
}

// NewManager creates a new cache manager
func NewManager(redis redisclient.ClientInterface) *Manager {
	return &Manager{redis: redis}
}

// Get retrieves a cached value and unmarshals it into result
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	data, err := m.redis.GetString(ctx, key)
	if err != nil {
		if redisclient.IsNil(err) {
			return ErrCacheMiss
		}
		return err
	}

	if err := json.Unmarshal([]byte(data), result); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return m.redis.SetWithExpiration(ctx, key, string(data), ttl)
}

// Delete removes a key from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	return m.redis.Delete(ctx, keys...)
}

// Invalidate removes keys matching a pattern and returns how many were deleted
func (m *Manager) Invalidate(ctx context.Context, pattern string) (int, error) {
	keys, err := m.redis.ScanKeys(ctx, pattern, 100)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := m.redis.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("failed to delete keys: %w", err)
	}
	return len(keys), nil
}

// Ping checks the backing store
func (m *Manager) Ping(ctx context.Context) error {
	return m.redis.Ping(ctx)
}

// CacheKeys defines common cache key patterns
type CacheKeys struct{}

var Keys = CacheKeys{}

// Flow returns the key of a provider flow reading for one H3 cell
func (k CacheKeys) Flow(provider, cell string) string {
	return fmt.Sprintf("traffic:flow:%s:%s", provider, cell)
}

// FlowPattern matches every cached flow reading
func (k CacheKeys) FlowPattern() string {
	return "traffic:flow:*"
}
