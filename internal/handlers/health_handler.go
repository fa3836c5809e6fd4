package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler expone los endpoints de salud
type HealthHandler struct {
	version      string
	dependencies map[string]Pinger
	timeout      time.Duration
}

// NewHealthHandler crea el handler de salud. Each dependency is pinged on
// readiness checks under its name.
func NewHealthHandler(version string, dependencies map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		version:      version,
		dependencies: dependencies,
		timeout:      3 * time.Second,
	}
}

// HealthCheck maneja GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "mopc-reportes",
		"version": h.version,
	})
}

// ReadinessCheck maneja GET /health/ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"dependencies": deps,
	})
}

// LivenessCheck maneja GET /health/live
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

// Register mounts the health routes.
func (h *HealthHandler) Register(r gin.IRoutes) {
	r.GET("/health", h.HealthCheck)
	r.GET("/health/ready", h.ReadinessCheck)
	r.GET("/health/live", h.LivenessCheck)
}
