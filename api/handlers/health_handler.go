package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/vidcollect-go/internal/app"
)

// Version is reported by the health endpoint
var Version = "dev"

// Pinger checks that a backing store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	runner *app.BatchRunner
	db     Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(runner *app.BatchRunner, db Pinger) *HealthHandler {
	return &HealthHandler{
		runner: runner,
		db:     db,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	ActiveBatches int    `json:"active_batches"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       Version,
		ActiveBatches: h.runner.ActiveBatches(),
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unreachable: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
