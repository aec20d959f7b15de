package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/config"
)

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, Shutdown(context.Background()))
}

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{
		Server:  config.ServerConfig{ServiceName: "traffic-service", Environment: "staging"},
		Tracing: config.TracingConfig{Enabled: true, OTLPEndpoint: "collector:4317", SampleRate: 0.25, Version: "2.0.0"},
	}

	tc := ConfigFrom(cfg)
	assert.Equal(t, "traffic-service", tc.ServiceName)
	assert.Equal(t, "2.0.0", tc.ServiceVersion)
	assert.Equal(t, "collector:4317", tc.OTLPEndpoint)
	assert.True(t, tc.Enabled)
}

func TestTraceBusinessLogicPassesThroughError(t *testing.T) {
	boom := errors.New("boom")
	err := TraceBusinessLogic(context.Background(), "traffic", "traffic.resolve", LocationAttributes(41.0082, 28.9784), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
