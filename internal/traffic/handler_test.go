package traffic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/route-traffic/internal/provider"
	"github.com/richxcame/route-traffic/internal/routing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ========================================
// MOCKS
// ========================================

type mockRouter struct {
	mock.Mock
}

func (m *mockRouter) Name() string { return "mock-router" }

func (m *mockRouter) Route(ctx context.Context, from, to orb.Point, profile routing.Profile) (routing.Route, error) {
	args := m.Called(ctx, from, to, profile)
	return args.Get(0).(routing.Route), args.Error(1)
}

type mockProbe struct {
	mock.Mock
}

func (m *mockProbe) Name() string { return "tomtom" }

func (m *mockProbe) FlowAt(ctx context.Context, p orb.Point) (provider.Flow, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(provider.Flow), args.Error(1)
}

// ========================================
// HELPERS
// ========================================

func setupRouter(router routing.Router, probe ProviderProbe) (*gin.Engine, *Service) {
	svc := NewService(testTrafficConfig(), splitSource(), newFakeClock(baseTime))
	r := gin.New()
	NewHandler(svc, router, probe).RegisterRoutes(r)
	return r, svc
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func routeBody() map[string]interface{} {
	points := northbound(step1500, step1500)
	raw := make([][]float64, len(points))
	for i, p := range points {
		raw[i] = []float64{p.Lon(), p.Lat()}
	}
	return map[string]interface{}{"points": raw, "durationSeconds": 300, "distanceMeters": 3000}
}

// ========================================
// TESTS
// ========================================

func TestAnnotateRouteHandler(t *testing.T) {
	r, _ := setupRouter(nil, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/traffic/route", routeBody())
	require.Equal(t, http.StatusOK, w.Code)

	env := decode(t, w)
	assert.True(t, env.Success)
	var result RouteTrafficResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Len(t, result.Segments, 2)
	assert.InDelta(t, 390, result.AdjustedDurationSeconds, 1e-6)
	assert.NotEmpty(t, result.Segments[0].Polyline)
}

func TestAnnotateRouteHandlerGeoJSON(t *testing.T) {
	r, _ := setupRouter(nil, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/traffic/route?format=geojson", routeBody())
	require.Equal(t, http.StatusOK, w.Code)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "good", fc.Features[0].Properties["condition"])
	assert.Equal(t, "moderate", fc.Features[1].Properties["condition"])
}

func TestAnnotateRouteHandlerValidation(t *testing.T) {
	r, _ := setupRouter(nil, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/traffic/route", map[string]interface{}{
		"points": [][]float64{{29, 41}}, "durationSeconds": 10,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/api/v1/traffic/route", map[string]interface{}{
		"points": [][]float64{{29, 41}, {200, 41}}, "durationSeconds": 10,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetFlowHandler(t *testing.T) {
	r, _ := setupRouter(nil, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/traffic/flow?point=41.0082,28.9784", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sample Sample
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &sample))
	assert.Greater(t, sample.DelayFactor, 0.0)

	w = doRequest(r, http.MethodGet, "/api/v1/traffic/flow", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/traffic/flow?point=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsAndClearHandlers(t *testing.T) {
	r, _ := setupRouter(nil, nil)
	doRequest(r, http.MethodPost, "/api/v1/traffic/route", routeBody())
	doRequest(r, http.MethodPost, "/api/v1/traffic/route", routeBody())

	w := doRequest(r, http.MethodGet, "/api/v1/traffic/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &snap))
	assert.Equal(t, int64(2), snap.HitCount)
	assert.Equal(t, int64(2), snap.MissCount)
	assert.Equal(t, 50, snap.HitRate)
	assert.Equal(t, int64(2), snap.APICallCount)

	w = doRequest(r, http.MethodDelete, "/api/v1/traffic/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cleared ClearResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &cleared))
	assert.Equal(t, 2, cleared.EntriesRemoved)

	w = doRequest(r, http.MethodGet, "/api/v1/traffic/stats", nil)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &snap))
	assert.Equal(t, int64(0), snap.HitCount)
	assert.Equal(t, 0, snap.Size)
}

func TestRouteAndAnnotateHandler(t *testing.T) {
	router := &mockRouter{}
	from := orb.Point{29.0, 41.0}
	to := orb.Point{29.0, 41.0 + 2*step1500}
	router.On("Route", mock.Anything, from, to, routing.ProfileCar).Return(routing.Route{
		Geometry:        northbound(step1500, step1500),
		DurationSeconds: 300,
		DistanceMeters:  3000,
		Source:          "osrm",
	}, nil)

	r, _ := setupRouter(router, nil)
	w := doRequest(r, http.MethodPost, "/api/v1/traffic/annotate", map[string]interface{}{
		"start": []float64{from.Lon(), from.Lat()},
		"end":   []float64{to.Lon(), to.Lat()},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result RouteTrafficResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.InDelta(t, 1.3, result.AggregateDelayFactor, 1e-9)
	router.AssertExpectations(t)
}

func TestRouteAndAnnotateHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "no route", err: routing.ErrNoRoute, status: http.StatusNotFound},
		{name: "upstream", err: errors.New("connection refused"), status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := &mockRouter{}
			router.On("Route", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(routing.Route{}, tt.err)

			r, _ := setupRouter(router, nil)
			w := doRequest(r, http.MethodPost, "/api/v1/traffic/annotate", map[string]interface{}{
				"start": []float64{29.0, 41.0}, "end": []float64{29.01, 41.02}, "profile": "bicycle",
			})
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRouteAndAnnotateHandlerRejectsProfile(t *testing.T) {
	r, _ := setupRouter(&mockRouter{}, nil)
	w := doRequest(r, http.MethodPost, "/api/v1/traffic/annotate", map[string]interface{}{
		"start": []float64{29.0, 41.0}, "end": []float64{29.01, 41.02}, "profile": "boat",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouteAndAnnotateWithoutRouter(t *testing.T) {
	r, _ := setupRouter(nil, nil)
	w := doRequest(r, http.MethodPost, "/api/v1/traffic/annotate", map[string]interface{}{
		"start": []float64{29.0, 41.0}, "end": []float64{29.01, 41.02},
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProviderStatusHandler(t *testing.T) {
	probe := &mockProbe{}
	probe.On("FlowAt", mock.Anything, istanbulCenter).Return(provider.Flow{CurrentSpeed: 40, FreeFlowSpeed: 50, Provider: "tomtom"}, nil).Once()
	probe.On("FlowAt", mock.Anything, istanbulCenter).Return(provider.Flow{}, provider.ErrAuthRejected).Once()

	r, _ := setupRouter(nil, probe)

	w := doRequest(r, http.MethodGet, "/api/v1/status/provider", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"connected"`)

	w = doRequest(r, http.MethodGet, "/api/v1/status/provider", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"auth_rejected"`)
}

func TestRoutingStatusHandler(t *testing.T) {
	router := &mockRouter{}
	router.On("Route", mock.Anything, kadikoy, uskudar, routing.ProfileCar).Return(routing.Route{}, nil).Once()
	router.On("Route", mock.Anything, kadikoy, uskudar, routing.ProfileCar).Return(routing.Route{}, errors.New("dial tcp: refused")).Once()

	r, _ := setupRouter(router, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/status/routing", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/status/routing", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"disconnected"`)
}
