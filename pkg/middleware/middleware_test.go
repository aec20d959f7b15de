package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/route-traffic/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCorrelationIDGeneratesWhenMissingOrInvalid(t *testing.T) {
	for _, header := range []string{"", "not-a-uuid"} {
		router := gin.New()
		router.Use(CorrelationID())

		var fromCtx string
		router.GET("/", func(c *gin.Context) {
			fromCtx = logger.CorrelationIDFromContext(c.Request.Context())
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(CorrelationIDHeader, header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		got := w.Header().Get(CorrelationIDHeader)
		_, err := uuid.Parse(got)
		require.NoError(t, err)
		assert.NotEqual(t, header, got)
		assert.Equal(t, got, fromCtx)
	}
}

func TestCorrelationIDReusesValidHeader(t *testing.T) {
	id := uuid.New().String()
	router := gin.New()
	router.Use(CorrelationID())
	router.GET("/", func(c *gin.Context) {
		assert.Equal(t, id, GetCorrelationID(c))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, id)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, id, w.Header().Get(CorrelationIDHeader))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	router := gin.New()
	router.Use(CORS("http://localhost:3000, https://maps.example.com"))
	router.GET("/api/v1/traffic/stats", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/traffic/stats", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://maps.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	router := gin.New()
	router.Use(CORS("http://localhost:3000"))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestTimeout(t *testing.T) {
	t.Run("should timeout after configured duration", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping timeout test in short mode")
		}

		router := gin.New()
		router.Use(RequestTimeout(50 * time.Millisecond))
		router.GET("/slow", func(c *gin.Context) {
			select {
			case <-time.After(500 * time.Millisecond):
				c.JSON(http.StatusOK, gin.H{"message": "success"})
			case <-c.Request.Context().Done():
			}
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Contains(t, w.Body.String(), "Request timeout")
	})

	t.Run("should not timeout if request completes in time", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestTimeout(time.Second))
		router.GET("/fast", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "success"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "success")
	})
}

func TestRecoveryWithSentryAnswers500(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationID(), RecoveryWithSentry())
	router.GET("/panic", func(c *gin.Context) {
		panic("segment index out of range")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "An unexpected error occurred")
}

func TestMetricsCountsByRoute(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())
	router.GET("/api/v1/traffic/stats", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/traffic/stats", "200"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/traffic/stats", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/traffic/stats", "200"))

	assert.Equal(t, 1.0, after-before)
}

func TestRequestLoggerRedactsKeys(t *testing.T) {
	got := redactKeys(map[string][]string{"key": {"secret"}})
	assert.Equal(t, "key=[REDACTED]", got)
	assert.Empty(t, redactKeys(nil))
}
