package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/app"
	"github.com/yourusername/vidcollect-go/internal/domain"
)

// CredentialHandler accepts login credentials and resumes suspended jobs
type CredentialHandler struct {
	pipeline *app.Pipeline
	logger   *zap.Logger
}

// NewCredentialHandler creates a new credential handler
func NewCredentialHandler(pipeline *app.Pipeline, logger *zap.Logger) *CredentialHandler {
	return &CredentialHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// CredentialsRequest carries the cookies and headers captured after a login
type CredentialsRequest struct {
	Cookies   map[string]string `json:"cookies"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// ResumeResponse reports the jobs rerun with the new credentials
type ResumeResponse struct {
	Platform domain.Platform      `json:"platform"`
	Resumed  int                  `json:"resumed"`
	Outcomes []domain.LinkOutcome `json:"outcomes"`
}

// SetCredentials handles POST /api/v1/credentials/:platform
func (h *CredentialHandler) SetCredentials(c *gin.Context) {
	platform, err := domain.ParsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if len(req.Cookies) == 0 && len(req.Headers) == 0 {
		respondError(c, http.StatusBadRequest, errors.New("cookies or headers are required"))
		return
	}

	outcomes, err := h.pipeline.Resume(c.Request.Context(), &domain.Credentials{
		Platform:  platform,
		Cookies:   req.Cookies,
		Headers:   req.Headers,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		h.logger.Error("Failed to resume jobs",
			zap.String("platform", string(platform)),
			zap.Error(err))
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	if outcomes == nil {
		outcomes = []domain.LinkOutcome{}
	}
	c.JSON(http.StatusOK, ResumeResponse{
		Platform: platform,
		Resumed:  len(outcomes),
		Outcomes: outcomes,
	})
}
