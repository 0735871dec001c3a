package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidaplus/hospital-api/pkg/logger"
)

// Logger returns a middleware that logs HTTP requests. Bodies are never
// logged since they carry credentials and clinical data.
func Logger(log *logger.Logger) gin.HandlerFunc {
	zl := log.With("http").Zerolog()

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		event := zl.Info()
		msg := "Request processed"
		if statusCode >= 500 {
			event = zl.Error()
			msg = "Server error"
		} else if statusCode >= 400 {
			event = zl.Warn()
			msg = "Client error"
		}

		event.
			Str("request_id", c.GetString(ContextRequestID)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("ip", c.ClientIP()).
			Int("status", statusCode).
			Dur("duration", latency).
			Str("user_agent", c.Request.UserAgent()).
			Msg(msg)
	}
}
