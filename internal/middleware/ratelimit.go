package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimitConfig configura el rate limiting por IP
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL is how long a client's limiter is kept after its last request.
	IdleTTL time.Duration
}

// SetupRateLimit limita las peticiones por IP de cliente. Los limitadores de
// clientes inactivos expiran tras IdleTTL.
func SetupRateLimit(config RateLimitConfig) gin.HandlerFunc {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	clients := cache.New(config.IdleTTL, config.IdleTTL)
	var mu sync.Mutex

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		mu.Lock()
		var limiter *rate.Limiter
		if v, ok := clients.Get(clientIP); ok {
			limiter = v.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize)
		}
		clients.SetDefault(clientIP, limiter)
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":    false,
				"error": "Demasiadas peticiones, intente de nuevo más tarde",
				"code":  "RATE_LIMITED",
			})
			return
		}

		c.Next()
	}
}
