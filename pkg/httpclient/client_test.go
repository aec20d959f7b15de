package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/route-traffic/pkg/logger"
	"github.com/richxcame/route-traffic/pkg/middleware"
	"github.com/richxcame/route-traffic/pkg/resilience"
)

func TestGetJSONSendsQueryAndCorrelationID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route/v1/driving/1,2;3,4", r.URL.Path)
		assert.Equal(t, "polyline", r.URL.Query().Get("geometries"))
		assert.Equal(t, "corr-123", r.Header.Get(middleware.CorrelationIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"Ok"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	ctx := logger.ContextWithCorrelationID(context.Background(), "corr-123")

	var out struct {
		Code string `json:"code"`
	}
	err := client.GetJSON(ctx, "/route/v1/driving/1,2;3,4", url.Values{"geometries": {"polyline"}}, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "Ok", out.Code)
}

func TestGetReturnsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("quota exceeded"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Get(context.Background(), "/flow", nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGetJSONReportsDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer server.Close()

	var out map[string]interface{}
	err := NewClient(server.URL, time.Second).GetJSON(context.Background(), "/", nil, nil, &out)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	retry := resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1,
	}
	body, err := NewClient(server.URL, time.Second, WithRetry("test", retry)).Get(context.Background(), "/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	retry := resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
	_, err := NewClient(server.URL, time.Second, WithRetry("test", retry)).Get(context.Background(), "/", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetDoesNotRetryQuotaRejection(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second, WithRetry("tomtom", resilience.DefaultRetryConfig())).Get(context.Background(), "/", nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.Equal(t, resilience.ClassRejected, resilience.ClassifyUpstreamError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
