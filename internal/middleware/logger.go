package middleware

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SetupLogging logs every request through the global zap logger.
func SetupLogging() gin.HandlerFunc {
	return ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health/live", "/metrics"},
	})
}

// SetupRecovery logs panics with their stack and answers 500.
func SetupRecovery() gin.HandlerFunc {
	return ginzap.RecoveryWithZap(zap.L(), true)
}

// RequestID agrega un ID único a cada petición
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("requestId", requestID)
		c.Next()
	}
}

// CorrelationID propaga el ID de correlación entre servicios
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Header("X-Correlation-ID", correlationID)
		c.Set("correlationId", correlationID)
		c.Next()
	}
}
