package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/app"
	"github.com/yourusername/vidcollect-go/internal/domain"
)

// BatchHandler handles batch submission and inspection
type BatchHandler struct {
	runner *app.BatchRunner
	// background batches outlive the request that submitted them
	baseCtx context.Context
	logger  *zap.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(runner *app.BatchRunner, baseCtx context.Context, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{
		runner:  runner,
		baseCtx: baseCtx,
		logger:  logger,
	}
}

// SubmitBatchRequest represents a request to collect share links
type SubmitBatchRequest struct {
	Lines []string `json:"lines" binding:"required"`
	Wait  bool     `json:"wait,omitempty"`
}

// SubmitBatchResponse is returned for batches that run in the background
type SubmitBatchResponse struct {
	BatchID string        `json:"batch_id"`
	Jobs    []*domain.Job `json:"jobs"`
}

// SubmitBatch handles POST /api/v1/batches
func (h *BatchHandler) SubmitBatch(c *gin.Context) {
	var req SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if req.Wait {
		summary, err := h.runner.Collect(c.Request.Context(), req.Lines)
		if err != nil {
			h.submitFailed(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}

	batchID, jobs, err := h.runner.RunAsync(h.baseCtx, req.Lines)
	if err != nil {
		h.submitFailed(c, err)
		return
	}
	c.JSON(http.StatusAccepted, SubmitBatchResponse{BatchID: batchID, Jobs: jobs})
}

func (h *BatchHandler) submitFailed(c *gin.Context, err error) {
	if errors.Is(err, app.ErrEmptyBatch) {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	h.logger.Error("Failed to submit batch", zap.Error(err))
	respondError(c, http.StatusInternalServerError, err)
}

// GetBatch handles GET /api/v1/batches/:id
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id := c.Param("id")

	summary, err := h.runner.Summary(id)
	if err != nil {
		h.logger.Error("Failed to load batch", zap.String("id", id), zap.Error(err))
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if summary == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("batch not found: %s", id))
		return
	}

	c.JSON(http.StatusOK, summary)
}
