package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mealforge/mealforge-api/internal/obs"
)

// Logger emits one structured access log line per request and feeds the
// request metrics.
func Logger(log zerolog.Logger, metrics *obs.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		metrics.RequestsTotal.WithLabelValues(method, path, statusLabel(status)).Inc()
		metrics.RequestDuration.WithLabelValues(method, path).Observe(latency.Seconds())

		log.Info().
			Str("request_id", c.GetString("request_id")).
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Str("identity", IdentityFrom(c)).
			Str("tier", TierFrom(c).String()).
			Msg("request")
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
