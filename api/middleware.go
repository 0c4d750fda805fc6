package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vinayprograms/solanirad/telemetry"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// requestID reuses a client-supplied id or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// observe wraps each request in a span, records metrics and logs errors.
// Streams are long-lived and only counted once they end.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx := telemetry.ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := s.tracer.StartHTTPSpan(ctx, c.Request.Method, route)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		s.tracer.EndHTTPSpan(span, status)
		s.metrics.HTTPRequest(c.Request.Method, route, strconv.Itoa(status), elapsed)

		if status >= 500 {
			s.logger.Warn("http_request", map[string]interface{}{
				"method":     c.Request.Method,
				"route":      route,
				"status":     status,
				"duration":   elapsed.String(),
				"request_id": c.GetString(requestIDKey),
			})
		} else {
			s.logger.Debug("http_request", map[string]interface{}{
				"method":   c.Request.Method,
				"route":    route,
				"status":   status,
				"duration": elapsed.String(),
			})
		}
	}
}
