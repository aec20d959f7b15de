package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/config"
	"github.com/richxcame/route-traffic/pkg/logger"
)

// RetryConfig defines how upstream calls are retried
type RetryConfig struct {
	// MaxAttempts includes the initial attempt
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	EnableJitter      bool
	// RetryableChecker overrides the default RetryableUpstreamError policy
	RetryableChecker func(error) bool
}

// DefaultRetryConfig allows a single retry of transient failures.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
}

// RetryConfigFrom builds a retry configuration from service settings.
func RetryConfigFrom(cfg config.RetryConfig) RetryConfig {
	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}
	return retry
}

// ErrorClass groups upstream failures by how a caller reacts to them.
type ErrorClass int

const (
	// ClassTransient failures (network errors, 408, 5xx) are worth another attempt.
	ClassTransient ErrorClass = iota
	// ClassRejected means the upstream refused our key or quota (401, 403, 429).
	ClassRejected
	// ClassPermanent covers other 4xx answers.
	ClassPermanent
	// ClassAborted is a cancelled or expired context, or an open breaker.
	ClassAborted
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRejected:
		return "rejected"
	case ClassPermanent:
		return "permanent"
	case ClassAborted:
		return "aborted"
	}
	return "unknown"
}

// UpstreamStatus returns the HTTP status carried by err, or 0.
// Errors expose it through an HTTPStatus() int method.
func UpstreamStatus(err error) int {
	var se interface{ HTTPStatus() int }
	if errors.As(err, &se) {
		return se.HTTPStatus()
	}
	return 0
}

// ClassifyUpstreamError sorts err into an ErrorClass.
func ClassifyUpstreamError(err error) ErrorClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCircuitOpen) {
		return ClassAborted
	}
	switch code := UpstreamStatus(err); {
	case code == 0:
		return ClassTransient
	case IsRejectedHTTPStatus(code):
		return ClassRejected
	case IsRetryableHTTPStatus(code):
		return ClassTransient
	default:
		return ClassPermanent
	}
}

// RetryableUpstreamError is the default retry policy: only transient failures are retried.
func RetryableUpstreamError(err error) bool {
	return err != nil && ClassifyUpstreamError(err) == ClassTransient
}

// IsRejectedHTTPStatus reports auth and quota refusals.
func IsRejectedHTTPStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}

// IsRetryableHTTPStatus reports statuses that signal a transient upstream fault.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Do runs op until it succeeds, the policy declines a retry, attempts run
// out or ctx ends. upstream labels logs and metrics ("tomtom", "osrm").
func Do[T any](ctx context.Context, cfg RetryConfig, upstream string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := cfg.RetryableChecker
	if retryable == nil {
		retryable = RetryableUpstreamError
	}
	upstream = upstreamLabel(upstream)

	var lastErr error
	attempt := 0
loop:
	for attempt < attempts {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempt++

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Get().Info("upstream call succeeded after retry",
					zap.String("upstream", upstream),
					zap.Int("attempt", attempt),
				)
			}
			recordRetry(upstream, attempt, nil)
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			logger.Get().Debug("upstream error not retried",
				zap.String("upstream", upstream),
				zap.String("class", ClassifyUpstreamError(err).String()),
				zap.Error(err),
			)
			break
		}
		if attempt == attempts {
			logger.Get().Warn("upstream call failed after all attempts",
				zap.String("upstream", upstream),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			break
		}

		backoff := backoffFor(attempt, cfg)
		retryBackoff.WithLabelValues(upstream).Observe(backoff.Seconds())
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
			break loop
		case <-timer.C:
		}
	}

	recordRetry(upstream, max(attempt, 1), lastErr)
	return zero, lastErr
}

// backoffFor returns initial * multiplier^(attempt-1), capped at MaxBackoff,
// with full jitter when enabled.
func backoffFor(attempt int, cfg RetryConfig) time.Duration {
	multiplier := cfg.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	backoff := float64(cfg.InitialBackoff) * math.Pow(multiplier, float64(attempt-1))
	if cfg.MaxBackoff > 0 && backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}

	d := time.Duration(backoff)
	if cfg.EnableJitter && d > 0 {
		d = time.Duration(rand.Int63n(int64(d)))
	}
	return d
}
