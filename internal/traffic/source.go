package traffic

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/internal/provider"
	"github.com/richxcame/route-traffic/pkg/logger"
	"github.com/richxcame/route-traffic/pkg/resilience"
	"github.com/richxcame/route-traffic/pkg/tracing"
)

const tracerName = "traffic"

// Source returns a sample for a segment. Implementations never fail: any
// provider problem is absorbed into a fallback sample.
type Source interface {
	Fetch(ctx context.Context, seg Segment) Sample
}

// FlowReader is the provider side of a Source.
type FlowReader interface {
	FlowAt(ctx context.Context, point orb.Point) (provider.Flow, error)
}

// ProviderSource queries a FlowReader at the segment midpoint and falls back
// to a synthesized sample on any error.
type ProviderSource struct {
	reader   FlowReader
	fallback *FallbackPolicy
	clock    Clock
}

// NewProviderSource creates a source. A nil reader always falls back.
func NewProviderSource(reader FlowReader, fallback *FallbackPolicy, clock Clock) *ProviderSource {
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = NewFallbackPolicy(clock, DefaultRushHours, 0)
	}
	return &ProviderSource{reader: reader, fallback: fallback, clock: clock}
}

// Fetch implements Source.
func (s *ProviderSource) Fetch(ctx context.Context, seg Segment) Sample {
	if s.reader == nil {
		return s.fallback.Sample(seg.LengthKm, ReasonNotConfigured)
	}

	mid := seg.Midpoint()
	var flow provider.Flow
	err := tracing.TraceExternalAPI(ctx, tracerName, "traffic-provider", "flow", func(ctx context.Context) error {
		tracing.AddSpanAttributes(ctx, tracing.LocationAttributes(mid.Lat(), mid.Lon())...)
		var err error
		flow, err = s.reader.FlowAt(ctx, mid)
		return err
	})
	if err == nil && (flow.CurrentSpeed <= 0 || flow.FreeFlowSpeed <= 0) {
		err = provider.ErrMalformedResponse
	}

	if err != nil {
		reason := FallbackReason(ctx, err)
		if reason != ReasonNotConfigured && reason != ReasonCanceled {
			logger.WithContext(ctx).Warn("Traffic provider failed, using fallback sample",
				zap.String("reason", reason),
				zap.Float64("lat", mid.Lat()),
				zap.Float64("lon", mid.Lon()),
				zap.Error(err),
			)
		}
		return s.fallback.Sample(seg.LengthKm, reason)
	}

	return Sample{
		CurrentSpeed:     flow.CurrentSpeed,
		FreeFlowSpeed:    flow.FreeFlowSpeed,
		Confidence:       flow.Confidence,
		DelayFactor:      flow.FreeFlowSpeed / flow.CurrentSpeed,
		FetchedAtEpochMs: s.clock.Now().UnixMilli(),
	}
}

// FallbackReason classifies a provider error for logs and metrics.
func FallbackReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case ctx.Err() != nil:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ReasonTimeout
		}
		return ReasonCanceled
	case errors.Is(err, resilience.ErrCircuitOpen):
		return ReasonCircuitOpen
	case errors.Is(err, provider.ErrAuthRejected):
		return ReasonAuth
	case errors.Is(err, provider.ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, provider.ErrMalformedResponse):
		return ReasonMalformed
	case errors.Is(err, provider.ErrNotConfigured):
		return ReasonNotConfigured
	default:
		return ReasonUpstream
	}
}
