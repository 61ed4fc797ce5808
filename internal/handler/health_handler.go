// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"serialkit/internal/config"
	"serialkit/pkg/serialkit"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	conn      *serialkit.Connection
	config    *config.Config
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(conn *serialkit.Connection, config *config.Config) *HealthHandler {
	return &HealthHandler{
		conn:      conn,
		config:    config,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports service and port state
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).String(),
		Checks:    make(map[string]CheckResult),
	}

	if h.conn.IsConnected() {
		health.Checks["serial"] = CheckResult{
			Status:  "healthy",
			Message: "Port open",
			Data:    map[string]interface{}{"port": h.conn.Port()},
		}
	} else {
		health.Status = "degraded"
		health.Checks["serial"] = CheckResult{
			Status:  "closed",
			Message: "Port not open",
			Data:    map[string]interface{}{"port": h.conn.Port()},
		}
	}

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck succeeds only while the port is open
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if !h.conn.IsConnected() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "serial port not open",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for process liveness probes
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
