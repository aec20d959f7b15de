package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/logger"
	"github.com/richxcame/route-traffic/pkg/resilience"
)

// BreakerFactory returns the circuit breaker guarding a named provider.
// A nil breaker lets every call through.
type BreakerFactory func(name string) *resilience.CircuitBreaker

type member struct {
	client  Client
	breaker *resilience.CircuitBreaker
}

// Chain tries providers in order until one answers. Each provider sits
// behind its own breaker so a failing one is skipped quickly.
type Chain struct {
	members []member
	name    string
}

// NewChain builds a chain over clients.
func NewChain(clients []Client, breakers BreakerFactory) *Chain {
	members := make([]member, 0, len(clients))
	names := make([]string, 0, len(clients))
	for _, client := range clients {
		m := member{client: client}
		if breakers != nil {
			m.breaker = breakers(client.Name())
		}
		members = append(members, m)
		names = append(names, client.Name())
	}
	return &Chain{members: members, name: strings.Join(names, "+")}
}

// Name returns the member names joined with "+".
func (c *Chain) Name() string {
	return c.name
}

// Len returns the number of providers in the chain.
func (c *Chain) Len() int {
	return len(c.members)
}

// FlowAt returns the first successful reading. When every provider fails
// the joined errors are returned.
func (c *Chain) FlowAt(ctx context.Context, point orb.Point) (Flow, error) {
	if len(c.members) == 0 {
		return Flow{}, ErrNotConfigured
	}

	errs := make([]error, 0, len(c.members))
	for _, m := range c.members {
		start := time.Now()
		result, err := m.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return m.client.FlowAt(ctx, point)
		})
		providerRequestDuration.WithLabelValues(m.client.Name()).Observe(time.Since(start).Seconds())

		if err == nil {
			providerRequestsTotal.WithLabelValues(m.client.Name(), "success").Inc()
			return result.(Flow), nil
		}

		providerRequestsTotal.WithLabelValues(m.client.Name(), resultLabel(err)).Inc()
		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
		if !errors.Is(err, ErrNotConfigured) {
			logger.WithContext(ctx).Debug("Traffic provider failed, trying next",
				zap.String("provider", m.client.Name()),
				zap.Error(err),
			)
		}
	}

	return Flow{}, errors.Join(errs...)
}

// IsBreakerSuccess keeps missing configuration and caller cancellation from
// counting against a provider's breaker.
func IsBreakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, context.Canceled)
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrAuthRejected):
		return "auth_rejected"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	default:
		return "error"
	}
}
