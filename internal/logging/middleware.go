package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// GinMiddleware tags each request with an id and logs it once it completes.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), id))

		c.Next()

		status := c.Writer.Status()
		level := zerolog.InfoLevel
		if status >= 500 {
			level = zerolog.ErrorLevel
		}
		Ctx(c.Request.Context()).WithLevel(level).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
