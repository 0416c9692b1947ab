package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/provansdecor/catalog/internal/domain"
	"github.com/provansdecor/catalog/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	catalog        *usecase.CatalogService
	previewTimeout time.Duration
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(catalog *usecase.CatalogService, previewTimeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if previewTimeout <= 0 {
		previewTimeout = time.Minute
	}
	return &Handler{
		catalog:        catalog,
		previewTimeout: previewTimeout,
		logger:         logger.Named("http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "provans-catalog",
		"version": "1.0.0",
	})
}

// Classify handles single-title classification requests
func (h *Handler) Classify(c *gin.Context) {
	var req domain.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	resp, err := h.catalog.Classify(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Normalize returns the comparison forms of a string
func (h *Handler) Normalize(c *gin.Context) {
	var req domain.NormalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	resp, err := h.catalog.Normalize(&req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Similarity scores two strings
func (h *Handler) Similarity(c *gin.Context) {
	var req domain.SimilarityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := h.catalog.Score(&req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Preview runs a dry-run reconciliation and returns its summary
func (h *Handler) Preview(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.previewTimeout)
	defer cancel()

	summary, err := h.catalog.Preview(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// writeError maps domain errors to status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInputNotFound), errors.Is(err, domain.ErrPhotoDirUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
