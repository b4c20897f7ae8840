package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contactkeval/option-surface/internal/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// requestID reuses the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs each request and records it in m.
func requestLogger(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		rid := c.GetString(requestIDKey)
		if len(c.Errors) > 0 {
			logger.Errorf("%s %s %d %v rid=%s err=%s", c.Request.Method, c.Request.URL.Path, status, elapsed, rid, c.Errors.String())
			return
		}
		logger.Debugf("%s %s %d %v rid=%s", c.Request.Method, c.Request.URL.Path, status, elapsed, rid)
	}
}
