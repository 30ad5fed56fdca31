package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/renzlucero/capstonehub/internal/service"
)

// AIHandler exposes the warm-up endpoints for the embedding backend.
type AIHandler struct {
	warmupService *service.WarmupService
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(warmupService *service.WarmupService) *AIHandler {
	return &AIHandler{
		warmupService: warmupService,
	}
}

// Status handles GET /api/v1/ai/status. It always returns 200; degraded
// backends are reported through the body, not the status code.
func (h *AIHandler) Status(c *gin.Context) {
	result := h.warmupService.Status(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

// Warmup handles POST /api/v1/ai/warmup.
func (h *AIHandler) Warmup(c *gin.Context) {
	result := h.warmupService.Warmup(c.Request.Context())
	c.JSON(http.StatusOK, result)
}
