package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/denisAlshanov/mediafetch/internal/utils"
)

const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)

// quietPaths are probed by the platform every few seconds; they are
// logged at debug level only.
var quietPaths = []string{"/health", "/ready", "/live", "/static/"}

// CorrelationIDMiddleware tags the request with correlation and request
// IDs and writes one log line when it completes. The line carries the
// status, the latency and whatever the gateway handlers recorded under
// utils.RequestLogKeys.
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = utils.GenerateCorrelationID()
		}
		requestID := utils.GenerateRequestID()

		c.Set(string(utils.CorrelationIDKey), correlationID)
		c.Set(string(utils.RequestIDKey), requestID)
		c.Header(HeaderCorrelationID, correlationID)
		c.Header(HeaderRequestID, requestID)

		ctx := utils.WithCorrelationID(c.Request.Context(), correlationID)
		ctx = utils.WithRequestID(ctx, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		fields := utils.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
		}
		for _, key := range utils.RequestLogKeys {
			if v, ok := c.Get(key); ok {
				fields[key] = v
			}
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		utils.LogAt(ctx, completionLevel(c.Request.URL.Path, status), "Request completed", nil, fields)
	}
}

func completionLevel(path string, status int) logrus.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return logrus.ErrorLevel
	case status >= http.StatusBadRequest && status != http.StatusNotFound:
		return logrus.WarnLevel
	}
	for _, p := range quietPaths {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return logrus.DebugLevel
		}
	}
	return logrus.InfoLevel
}
