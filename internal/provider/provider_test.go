package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/route-traffic/pkg/resilience"
)

var istanbul = orb.Point{28.9784, 41.0082}

func singleAttempt() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1}
}

// ========================================
// MOCK: Client
// ========================================

type mockClient struct {
	mock.Mock
	name string
}

func (m *mockClient) Name() string { return m.name }

func (m *mockClient) FlowAt(ctx context.Context, point orb.Point) (Flow, error) {
	args := m.Called(ctx, point)
	return args.Get(0).(Flow), args.Error(1)
}

// ========================================
// TomTom
// ========================================

func TestTomTomFlowAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tomtomFlowPath, r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "41.008200,28.978400", r.URL.Query().Get("point"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"flowSegmentData":{"currentSpeed":32,"freeFlowSpeed":48,"confidence":0.92}}`))
	}))
	defer srv.Close()

	flow, err := NewTomTom(srv.URL, "secret", 0, singleAttempt()).FlowAt(context.Background(), istanbul)
	require.NoError(t, err)
	assert.Equal(t, 32.0, flow.CurrentSpeed)
	assert.Equal(t, 48.0, flow.FreeFlowSpeed)
	assert.Equal(t, 0.92, flow.Confidence)
	assert.Equal(t, NameTomTom, flow.Provider)
	assert.InDelta(t, 1.5, flow.DelayFactor(), 1e-9)
}

func TestTomTomFlowAtAppliesDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"flowSegmentData":{"currentSpeed":25}}`))
	}))
	defer srv.Close()

	flow, err := NewTomTom(srv.URL, "secret", 0, singleAttempt()).FlowAt(context.Background(), istanbul)
	require.NoError(t, err)
	assert.Equal(t, 25.0, flow.CurrentSpeed)
	assert.Equal(t, DefaultSpeedKmh, flow.FreeFlowSpeed)
	assert.Equal(t, DefaultConfidence, flow.Confidence)
}

func TestTomTomFlowAtErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "forbidden", status: http.StatusForbidden, body: `{"error":"bad key"}`, want: ErrAuthRejected},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{}`, want: ErrAuthRejected},
		{name: "quota", status: http.StatusTooManyRequests, body: `{}`, want: ErrRateLimited},
		{name: "bad json", status: http.StatusOK, body: `{not json`, want: ErrMalformedResponse},
		{name: "missing data", status: http.StatusOK, body: `{}`, want: ErrMalformedResponse},
		{name: "zero speed", status: http.StatusOK, body: `{"flowSegmentData":{"currentSpeed":0}}`, want: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewTomTom(srv.URL, "secret", 0, singleAttempt()).FlowAt(context.Background(), istanbul)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTomTomWithoutKeyIsNotConfigured(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewTomTom(srv.URL, "", 0, singleAttempt()).FlowAt(context.Background(), istanbul)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, called)
}

func TestFlowClientsDoNotRepeatRefusedRequests(t *testing.T) {
	retry := resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1,
		RetryableChecker:  func(error) bool { return true },
	}
	clients := map[string]func(baseURL string) Client{
		NameTomTom: func(u string) Client { return NewTomTom(u, "secret", time.Second, retry) },
		NameHERE:   func(u string) Client { return NewHERE(u, "secret", time.Second, retry) },
	}
	tests := []struct {
		status   int
		wantHits int32
		want     error
	}{
		{status: http.StatusTooManyRequests, wantHits: 1, want: ErrRateLimited},
		{status: http.StatusForbidden, wantHits: 1, want: ErrAuthRejected},
		{status: http.StatusUnauthorized, wantHits: 1, want: ErrAuthRejected},
		{status: http.StatusServiceUnavailable, wantHits: 3},
	}

	for name, newClient := range clients {
		for _, tt := range tests {
			t.Run(name+"/"+http.StatusText(tt.status), func(t *testing.T) {
				var hits int32
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					atomic.AddInt32(&hits, 1)
					w.WriteHeader(tt.status)
				}))
				defer srv.Close()

				_, err := newClient(srv.URL).FlowAt(context.Background(), istanbul)
				require.Error(t, err)
				if tt.want != nil {
					assert.ErrorIs(t, err, tt.want)
				}
				assert.Equal(t, tt.wantHits, atomic.LoadInt32(&hits))
			})
		}
	}
}

// ========================================
// HERE
// ========================================

func TestHEREFlowAtConvertsToKmh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, hereFlowPath, r.URL.Path)
		assert.Equal(t, "here-key", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "circle:41.008200,28.978400;r=50", r.URL.Query().Get("in"))
		_, _ = w.Write([]byte(`{"results":[{"currentFlow":{"speed":10,"freeFlow":15,"confidence":0.8,"jamFactor":3.2}}]}`))
	}))
	defer srv.Close()

	flow, err := NewHERE(srv.URL, "here-key", 0, singleAttempt()).FlowAt(context.Background(), istanbul)
	require.NoError(t, err)
	assert.Equal(t, 36.0, flow.CurrentSpeed)
	assert.Equal(t, 54.0, flow.FreeFlowSpeed)
	assert.Equal(t, 0.8, flow.Confidence)
	assert.Equal(t, NameHERE, flow.Provider)
	assert.False(t, flow.RoadClosure)
}

func TestHEREFlowAtEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	_, err := NewHERE(srv.URL, "here-key", 0, singleAttempt()).FlowAt(context.Background(), istanbul)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

// ========================================
// Chain
// ========================================

func TestChainFallsThroughToNextProvider(t *testing.T) {
	first := &mockClient{name: NameTomTom}
	second := &mockClient{name: NameHERE}
	first.On("FlowAt", mock.Anything, istanbul).Return(Flow{}, ErrRateLimited)
	second.On("FlowAt", mock.Anything, istanbul).Return(Flow{CurrentSpeed: 40, FreeFlowSpeed: 50, Confidence: 0.8, Provider: NameHERE}, nil)

	chain := NewChain([]Client{first, second}, nil)
	assert.Equal(t, "tomtom+here", chain.Name())

	flow, err := chain.FlowAt(context.Background(), istanbul)
	require.NoError(t, err)
	assert.Equal(t, NameHERE, flow.Provider)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestChainJoinsErrorsWhenAllFail(t *testing.T) {
	first := &mockClient{name: NameTomTom}
	second := &mockClient{name: NameHERE}
	first.On("FlowAt", mock.Anything, istanbul).Return(Flow{}, ErrAuthRejected)
	second.On("FlowAt", mock.Anything, istanbul).Return(Flow{}, ErrNotConfigured)

	_, err := NewChain([]Client{first, second}, nil).FlowAt(context.Background(), istanbul)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEmptyChainIsNotConfigured(t *testing.T) {
	_, err := NewChain(nil, nil).FlowAt(context.Background(), istanbul)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestChainBreakerSkipsFailingProvider(t *testing.T) {
	failing := &mockClient{name: NameTomTom}
	failing.On("FlowAt", mock.Anything, istanbul).Return(Flow{}, errors.New("connection refused"))

	breakers := func(name string) *resilience.CircuitBreaker {
		return resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "test-" + name,
			FailureThreshold: 2,
			IsSuccessful:     IsBreakerSuccess,
		}, nil)
	}
	chain := NewChain([]Client{failing}, breakers)

	for i := 0; i < 2; i++ {
		_, err := chain.FlowAt(context.Background(), istanbul)
		require.Error(t, err)
	}

	_, err := chain.FlowAt(context.Background(), istanbul)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	failing.AssertNumberOfCalls(t, "FlowAt", 2)
}

func TestIsBreakerSuccess(t *testing.T) {
	assert.True(t, IsBreakerSuccess(nil))
	assert.True(t, IsBreakerSuccess(ErrNotConfigured))
	assert.True(t, IsBreakerSuccess(context.Canceled))
	assert.False(t, IsBreakerSuccess(ErrRateLimited))
	assert.False(t, IsBreakerSuccess(context.DeadlineExceeded))
}
