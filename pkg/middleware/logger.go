package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/logger"
)

// quietPaths are polled by probes and scrapers and only logged at debug level.
var quietPaths = map[string]bool{
	"/metrics":      true,
	"/healthz":      true,
	"/health/live":  true,
	"/health/ready": true,
}

// RequestLogger logs HTTP requests
func RequestLogger(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("route", c.FullPath()),
			zap.String("query", redactKeys(c.Request.URL.Query())),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("response_size", c.Writer.Size()),
		}

		reqLogger := logger.WithContext(c.Request.Context())

		switch {
		case len(c.Errors) > 0:
			fields = append(fields, zap.String("errors", c.Errors.String()))
			reqLogger.Error("Request completed with errors", fields...)
		case quietPaths[path]:
			reqLogger.Debug("Request completed", fields...)
		default:
			reqLogger.Info("Request completed", fields...)
		}
	}
}

func redactKeys(query map[string][]string) string {
	if len(query) == 0 {
		return ""
	}
	parts := make([]string, 0, len(query))
	for key, values := range query {
		value := strings.Join(values, ",")
		if strings.Contains(strings.ToLower(key), "key") {
			value = "[REDACTED]"
		}
		parts = append(parts, key+"="+value)
	}
	return strings.Join(parts, "&")
}
