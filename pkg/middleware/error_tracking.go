package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/common"
	"github.com/richxcame/route-traffic/pkg/errors"
	"github.com/richxcame/route-traffic/pkg/logger"
)

// SentryMiddleware attaches a Sentry hub to every request
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorHandler reports unexpected handler errors and 5xx responses to Sentry.
// It should be placed after other middleware in the chain.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		errors.AddBreadcrumbForRequest(c.Request.Method, c.Request.URL.Path, statusCode, duration)

		for _, ginErr := range c.Errors {
			if errors.ShouldReportError(ginErr.Err, statusCode) {
				captureError(c, ginErr.Err, statusCode, duration)
			}
		}

		if statusCode >= http.StatusInternalServerError && len(c.Errors) == 0 {
			captureError(c, fmt.Errorf("HTTP %d: %s %s", statusCode, c.Request.Method, c.Request.URL.Path), statusCode, duration)
		}
	}
}

// RecoveryWithSentry recovers from panics, reports them and answers 500
func RecoveryWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				hub := sentrygin.GetHubFromContext(c)
				if hub == nil {
					hub = sentry.CurrentHub().Clone()
				}

				hub.Scope().SetRequest(c.Request)
				hub.Scope().SetTag("correlation_id", GetCorrelationID(c))
				hub.RecoverWithContext(c.Request.Context(), recovered)

				logger.WithContext(c.Request.Context()).Error("panic recovered",
					zap.Any("panic", recovered),
					zap.ByteString("stack", debug.Stack()),
				)

				c.Abort()
				common.ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
			}
		}()

		c.Next()
	}
}

func captureError(c *gin.Context, err error, statusCode int, duration time.Duration) {
	hub := sentrygin.GetHubFromContext(c)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetLevel(sentryLevel(statusCode))
		scope.SetTag("http.method", c.Request.Method)
		scope.SetTag("http.status_code", fmt.Sprintf("%d", statusCode))
		scope.SetTag("http.route", c.FullPath())
		scope.SetTag("correlation_id", GetCorrelationID(c))
		scope.SetContext("http", map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
			"remote_addr": c.ClientIP(),
		})
		hub.CaptureException(err)
	})
}

func sentryLevel(statusCode int) sentry.Level {
	switch {
	case statusCode >= 500:
		return sentry.LevelError
	case statusCode == http.StatusTooManyRequests:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
