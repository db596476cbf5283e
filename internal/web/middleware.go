package web

import (
	"time"

	"github.com/labstack/echo/v4"

	"floor-service/internal/logger"
)

const requestIDKey = "request_id"

// RequestID returns the request id attached by the middleware
func RequestID(c echo.Context) string {
	if id, ok := c.Get(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestLogging tags every request with an id and logs its
// start/completion with timing
func WithRequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := logger.GenerateRequestID()
			c.Set(requestIDKey, requestID)

			log.Debug("request_started", c.Request().Method+" "+c.Request().URL.Path, requestID, map[string]interface{}{
				"method":      c.Request().Method,
				"path":        c.Request().URL.Path,
				"remote_addr": c.Request().RemoteAddr,
			})

			err := next(c)

			log.Debug("request_completed", c.Request().Method+" "+c.Request().URL.Path, requestID, map[string]interface{}{
				"method":      c.Request().Method,
				"path":        c.Request().URL.Path,
				"status_code": c.Response().Status,
				"duration_ms": time.Since(start).Milliseconds(),
			})

			return err
		}
	}
}
