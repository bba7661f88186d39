package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/LdDl/sot-go/oracle"
	"github.com/LdDl/sot-go/runner"
)

// StatusProvider gives current session snapshot
type StatusProvider interface {
	Snapshot() runner.Snapshot
}

// HealthChecker checks inference service. May be nil when tracking runs locally
type HealthChecker interface {
	CheckHealth(ctx context.Context) (*oracle.HealthResponse, error)
}

// StatusHandler serves tracking status
type StatusHandler struct {
	status StatusProvider
	health HealthChecker
	logger *logrus.Logger
}

// NewStatusHandler creates new instance of StatusHandler
func NewStatusHandler(status StatusProvider, health HealthChecker, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		status: status,
		health: health,
		logger: logger,
	}
}

// RegisterRoutes registers API routes
func (h *StatusHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/status", h.GetStatus)
		api.GET("/health", h.CheckHealth)
	}
}

// GetStatus returns latest session snapshot
func (h *StatusHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Snapshot())
}

// CheckHealth reports tracker liveness and, when configured, inference service health
func (h *StatusHandler) CheckHealth(c *gin.Context) {
	snap := h.status.Snapshot()
	response := gin.H{
		"status":  "ok",
		"running": snap.Running,
	}
	if h.health == nil {
		c.JSON(http.StatusOK, response)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	health, err := h.health.CheckHealth(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Inference service health check failed")
		response["status"] = "degraded"
		response["inference"] = gin.H{"error": err.Error()}
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	response["inference"] = health
	if !health.ModelLoaded {
		response["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
