package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports process liveness plus dependency reachability.
// GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}

	if h.db != nil {
		if sqlDB, err := h.db.DB(); err == nil && sqlDB.PingContext(c.Request.Context()) == nil {
			checks["database"] = "ok"
		} else {
			checks["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()); err == nil {
			checks["redis"] = "ok"
		} else {
			checks["redis"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	checks["websocket_connections"] = h.hub.GetMetrics().ActiveConnections

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":    overall,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
