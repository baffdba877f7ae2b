package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// BatchResolver resolves many lines of share text at once
type BatchResolver interface {
	ResolveAll(ctx context.Context, lines []string) ([]domain.ResolvedLink, map[int]error)
}

// ResolveHandler resolves share text without running the pipeline
type ResolveHandler struct {
	resolver BatchResolver
}

// NewResolveHandler creates a new resolve handler
func NewResolveHandler(resolver BatchResolver) *ResolveHandler {
	return &ResolveHandler{resolver: resolver}
}

// ResolveRequest lists share text to resolve
type ResolveRequest struct {
	Lines []string `json:"lines" binding:"required"`
}

// LineError reports why one input line could not be resolved
type LineError struct {
	Line     int    `json:"line"`
	Category string `json:"category"`
	Error    string `json:"error"`
}

// ResolveResponse holds the resolved links and the per-line failures
type ResolveResponse struct {
	Links  []domain.ResolvedLink `json:"links"`
	Errors []LineError           `json:"errors"`
}

// Resolve handles POST /api/v1/resolve
func (h *ResolveHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	links, errs := h.resolver.ResolveAll(c.Request.Context(), req.Lines)

	resp := ResolveResponse{
		Links:  links,
		Errors: make([]LineError, 0, len(errs)),
	}
	if resp.Links == nil {
		resp.Links = []domain.ResolvedLink{}
	}
	for i := range req.Lines {
		if err, ok := errs[i]; ok {
			resp.Errors = append(resp.Errors, LineError{
				Line:     i,
				Category: domain.CategoryOf(err),
				Error:    err.Error(),
			})
		}
	}

	c.JSON(http.StatusOK, resp)
}
