package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/app"
)

// jobQueryFilters maps query parameters onto repository filter columns
var jobQueryFilters = []string{"batch_id", "state", "platform", "content_id", "failure_category"}

// JobHandler handles job inspection and retries
type JobHandler struct {
	runner   *app.BatchRunner
	pipeline *app.Pipeline
	logger   *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(runner *app.BatchRunner, pipeline *app.Pipeline, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		runner:   runner,
		pipeline: pipeline,
		logger:   logger,
	}
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	filters := make(map[string]interface{})
	for _, key := range jobQueryFilters {
		if value := c.Query(key); value != "" {
			filters[key] = value
		}
	}

	jobs, err := h.runner.ListJobs(filters)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// GetStats handles GET /api/v1/jobs/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.runner.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.runner.GetJob(id)
	if err != nil {
		h.logger.Error("Failed to load job", zap.String("id", id), zap.Error(err))
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if job == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("job not found: %s", id))
		return
	}

	c.JSON(http.StatusOK, job)
}

// RetryJob handles POST /api/v1/jobs/:id/retry
func (h *JobHandler) RetryJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.runner.GetJob(id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if job == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("job not found: %s", id))
		return
	}
	if !job.CanRerun() {
		respondError(c, http.StatusConflict, fmt.Errorf("job %s cannot be retried in state %s", id, job.State))
		return
	}

	outcome, err := h.pipeline.Retry(c.Request.Context(), id)
	if errors.Is(err, app.ErrJobClaimed) {
		respondError(c, http.StatusConflict, err)
		return
	}
	if err != nil {
		h.logger.Error("Failed to retry job", zap.String("id", id), zap.Error(err))
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}
