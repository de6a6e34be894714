// Package middleware provides shared Gin middleware.
package middleware

import (
	"time"

	"cotizador_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request with method, path, status and latency.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := float64(time.Since(start).Microseconds()) / 1000.0
		log.HTTPRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), latency, c.ClientIP())
	}
}
