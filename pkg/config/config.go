package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/richxcame/route-traffic/pkg/validation"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Traffic    TrafficConfig
	Provider   ProviderConfig
	Routing    RoutingConfig
	Events     EventsConfig
	Resilience ResilienceConfig
	Tracing    TracingConfig
	Sentry     SentryConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port                  string `validate:"required,numeric"`
	Environment           string `validate:"required"`
	ServiceName           string `validate:"required"`
	ReadTimeout           int    `validate:"gte=0"`
	WriteTimeout          int    `validate:"gte=0"`
	RequestTimeoutSeconds int    `validate:"gte=0"`
	CORSOrigins           string // Comma-separated list of allowed origins
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// TrafficConfig tunes segmentation, caching, fallback synthesis and classification
type TrafficConfig struct {
	MaxSegmentMeters   float64       `validate:"gt=0"`
	MinSegmentMeters   float64       `validate:"gte=0"`
	CacheTTL           time.Duration `validate:"gt=0"`
	FallbackTTLDivisor int           `validate:"gte=1"`
	CacheMaxSize       int           `validate:"gte=1"`
	EvictFraction      float64       `validate:"gte=0,lte=1"`
	SweepInterval      time.Duration `validate:"gte=0"`
	FetchTimeout       time.Duration `validate:"gt=0"`
	CoordPrecision     int           `validate:"gte=0,lte=10"`
	UndirectedKeys     bool
	RushHours          string  `validate:"hour_ranges"`
	ThresholdGood      float64 `validate:"gt=0"`
	ThresholdModerate  float64 `validate:"gtefield=ThresholdGood"`
	FallbackSeed       int64
}

// ProviderConfig holds the external traffic provider settings
type ProviderConfig struct {
	Order              string `validate:"required,traffic_provider"` // Comma-separated, tried in order
	TomTomAPIKey       string
	TomTomBaseURL      string `validate:"required,url"`
	HereAPIKey         string
	HereBaseURL        string `validate:"required,url"`
	SharedCacheEnabled bool
	SharedCacheTTL     time.Duration
}

// RoutingConfig holds the routing service settings
type RoutingConfig struct {
	OSRMBaseURL      string `validate:"required,url"`
	GoogleMapsAPIKey string
	CacheTTL         time.Duration
	CacheSize        int `validate:"gte=1"`
	HTTPTimeout      time.Duration
}

// EventsConfig holds NATS publishing configuration
type EventsConfig struct {
	NATSURL string
	Enabled bool
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
	Version      string
}

// SentryConfig holds error reporting configuration
type SentryConfig struct {
	DSN        string
	SampleRate float64
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
	Retry          RetryConfig
}

// RetryConfig controls retries of idempotent upstream GETs
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// CircuitBreakerConfig captures default and per-service breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream service
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:                  getEnv("PORT", "8090"),
			Environment:           getEnv("ENVIRONMENT", "development"),
			ServiceName:           serviceName,
			ReadTimeout:           getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout:          getEnvAsInt("WRITE_TIMEOUT", 30),
			RequestTimeoutSeconds: getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30),
			CORSOrigins:           getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Traffic: TrafficConfig{
			MaxSegmentMeters:   getEnvAsFloat("TRAFFIC_MAX_SEGMENT_METERS", 1000),
			MinSegmentMeters:   getEnvAsFloat("TRAFFIC_MIN_SEGMENT_METERS", 100),
			CacheTTL:           getEnvAsMillis("TRAFFIC_CACHE_TTL_MS", time.Minute),
			FallbackTTLDivisor: getEnvAsInt("TRAFFIC_FALLBACK_TTL_DIVISOR", 10),
			CacheMaxSize:       getEnvAsInt("TRAFFIC_CACHE_MAX_SIZE", 100),
			EvictFraction:      getEnvAsFloat("TRAFFIC_CACHE_EVICT_FRACTION", 0.1),
			SweepInterval:      getEnvAsMillis("TRAFFIC_CACHE_SWEEP_MS", 2*time.Minute),
			FetchTimeout:       getEnvAsMillis("TRAFFIC_FETCH_TIMEOUT_MS", 10*time.Second),
			CoordPrecision:     getEnvAsInt("TRAFFIC_COORD_PRECISION", 6),
			UndirectedKeys:     getEnvAsBool("TRAFFIC_UNDIRECTED_KEYS", false),
			RushHours:          getEnv("TRAFFIC_RUSH_HOURS", "7-9,17-19"),
			ThresholdGood:      getEnvAsFloat("TRAFFIC_THRESHOLD_GOOD", 1.20),
			ThresholdModerate:  getEnvAsFloat("TRAFFIC_THRESHOLD_MODERATE", 1.50),
			FallbackSeed:       int64(getEnvAsInt("TRAFFIC_FALLBACK_SEED", 0)),
		},
		Provider: ProviderConfig{
			Order:              strings.ToLower(getEnv("TRAFFIC_PROVIDER", "tomtom")),
			TomTomAPIKey:       getEnv("TOMTOM_API_KEY", ""),
			TomTomBaseURL:      getEnv("TOMTOM_BASE_URL", "https://api.tomtom.com"),
			HereAPIKey:         getEnv("HERE_API_KEY", ""),
			HereBaseURL:        getEnv("HERE_BASE_URL", "https://data.traffic.hereapi.com"),
			SharedCacheEnabled: getEnvAsBool("SHARED_FLOW_CACHE_ENABLED", false),
			SharedCacheTTL:     getEnvAsSeconds("SHARED_FLOW_CACHE_TTL_SECONDS", 180*time.Second),
		},
		Routing: RoutingConfig{
			OSRMBaseURL:      getEnv("OSRM_BASE_URL", "http://localhost:5050"),
			GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
			CacheTTL:         getEnvAsSeconds("ROUTE_CACHE_TTL_SECONDS", 300*time.Second),
			CacheSize:        getEnvAsInt("ROUTE_CACHE_SIZE", 500),
			HTTPTimeout:      getEnvAsSeconds("ROUTING_HTTP_TIMEOUT_SECONDS", 15*time.Second),
		},
		Events: EventsConfig{
			NATSURL: getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("EVENTS_ENABLED", false),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0),
			Version:      getEnv("SERVICE_VERSION", "1.0.0"),
		},
		Sentry: SentryConfig{
			DSN:        getEnv("SENTRY_DSN", ""),
			SampleRate: getEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
			Retry: RetryConfig{
				MaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 2),
				InitialBackoff: getEnvAsMillis("RETRY_INITIAL_BACKOFF_MS", 200*time.Millisecond),
				MaxBackoff:     getEnvAsMillis("RETRY_MAX_BACKOFF_MS", 2*time.Second),
			},
		},
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if cfg.Resilience.CircuitBreaker.TimeoutSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.TimeoutSeconds = 30
	}

	if cfg.Resilience.CircuitBreaker.IntervalSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.IntervalSeconds = 60
	}

	if cfg.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.FailureThreshold = 5
	}

	if cfg.Resilience.CircuitBreaker.SuccessThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.SuccessThreshold = 1
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every section against its struct tags
func (c *Config) Validate() error {
	sections := []interface{}{&c.Server, &c.Traffic, &c.Provider, &c.Routing}
	for _, section := range sections {
		if err := validation.ValidateStruct(section); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

// Providers returns the configured provider names in fallback order
func (c ProviderConfig) Providers() []string {
	var names []string
	for _, name := range strings.Split(c.Order, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// RushHourWindows parses the configured rush-hour ranges
func (c TrafficConfig) RushHourWindows() []validation.HourRange {
	// Validated at load time.
	ranges, _ := validation.ParseHourRanges(c.RushHours)
	return ranges
}

// RequestTimeout returns the per-request HTTP deadline
func (c ServerConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// SettingsFor returns effective breaker settings for a specific upstream service name
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if c.ServiceOverrides != nil {
		if override, ok := c.ServiceOverrides[service]; ok {
			if override.FailureThreshold > 0 {
				settings.FailureThreshold = override.FailureThreshold
			}
			if override.SuccessThreshold > 0 {
				settings.SuccessThreshold = override.SuccessThreshold
			}
			if override.TimeoutSeconds > 0 {
				settings.TimeoutSeconds = override.TimeoutSeconds
			}
			if override.IntervalSeconds > 0 {
				settings.IntervalSeconds = override.IntervalSeconds
			}
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Millisecond
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Second
	}
	return defaultValue
}
