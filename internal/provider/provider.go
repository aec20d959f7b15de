package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/paulmach/orb"

	"github.com/richxcame/route-traffic/pkg/httpclient"
	"github.com/richxcame/route-traffic/pkg/resilience"
)

// Provider names accepted in TRAFFIC_PROVIDER.
const (
	NameTomTom = "tomtom"
	NameHERE   = "here"
)

// Defaults applied when a provider omits a field.
const (
	DefaultSpeedKmh   = 50.0
	DefaultConfidence = 0.7
)

var (
	// ErrAuthRejected is returned when the provider refuses the API key.
	ErrAuthRejected = errors.New("provider rejected credentials")
	// ErrRateLimited is returned when the provider quota is exhausted.
	ErrRateLimited = errors.New("provider rate limit exceeded")
	// ErrMalformedResponse is returned when the body cannot be normalized.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrNotConfigured is returned when no provider has an API key.
	ErrNotConfigured = errors.New("no traffic provider configured")
)

// Flow is a normalized traffic reading near a point. Speeds are km/h.
type Flow struct {
	CurrentSpeed  float64 `json:"currentSpeed"`
	FreeFlowSpeed float64 `json:"freeFlowSpeed"`
	Confidence    float64 `json:"confidence"`
	RoadClosure   bool    `json:"roadClosure,omitempty"`
	Provider      string  `json:"provider"`
}

// DelayFactor returns free-flow over current speed.
func (f Flow) DelayFactor() float64 {
	if f.CurrentSpeed <= 0 {
		return 1
	}
	return f.FreeFlowSpeed / f.CurrentSpeed
}

// Client reads traffic flow for a single point.
type Client interface {
	Name() string
	FlowAt(ctx context.Context, point orb.Point) (Flow, error)
}

// normalize fills absent fields with defaults and rejects readings that
// cannot yield a delay factor.
func normalize(name string, current, freeFlow, confidence *float64) (Flow, error) {
	flow := Flow{
		CurrentSpeed:  DefaultSpeedKmh,
		FreeFlowSpeed: DefaultSpeedKmh,
		Confidence:    DefaultConfidence,
		Provider:      name,
	}
	if current != nil {
		flow.CurrentSpeed = *current
	}
	if freeFlow != nil {
		flow.FreeFlowSpeed = *freeFlow
	}
	if confidence != nil {
		flow.Confidence = *confidence
	}

	if flow.CurrentSpeed <= 0 || flow.FreeFlowSpeed <= 0 {
		return Flow{}, fmt.Errorf("%s: non-positive speed: %w", name, ErrMalformedResponse)
	}
	if flow.Confidence < 0 || flow.Confidence > 1 {
		return Flow{}, fmt.Errorf("%s: confidence %.2f out of range: %w", name, flow.Confidence, ErrMalformedResponse)
	}
	return flow, nil
}

// flowRetry pins the retry policy for metered flow APIs: auth and quota
// refusals go straight to the caller's fallback.
func flowRetry(retry resilience.RetryConfig) resilience.RetryConfig {
	retry.RetryableChecker = resilience.RetryableUpstreamError
	return retry
}

// classifyError maps transport errors onto the provider sentinels.
func classifyError(name string, err error) error {
	switch code := httpclient.StatusCode(err); code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w: %w", name, ErrAuthRejected, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %w", name, ErrRateLimited, err)
	}
	if errors.Is(err, httpclient.ErrDecode) {
		return fmt.Errorf("%s: %w: %w", name, ErrMalformedResponse, err)
	}
	return fmt.Errorf("%s flow request failed: %w", name, err)
}
