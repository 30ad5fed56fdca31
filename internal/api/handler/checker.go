package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/renzlucero/capstonehub/internal/logger"
	"github.com/renzlucero/capstonehub/internal/service"
)

// ProposalChecker runs a similarity check for a proposal request.
type ProposalChecker interface {
	Check(ctx context.Context, req *service.CheckRequest) (*service.CheckResult, error)
}

// CheckerHandler handles proposal similarity check endpoints.
type CheckerHandler struct {
	checkerService ProposalChecker
}

// NewCheckerHandler creates a new checker handler.
func NewCheckerHandler(checkerService ProposalChecker) *CheckerHandler {
	return &CheckerHandler{
		checkerService: checkerService,
	}
}

// Check handles POST /api/v1/checker/check.
func (h *CheckerHandler) Check(c *gin.Context) {
	var req service.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	result, err := h.checkerService.Check(c.Request.Context(), &req)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "Validation failed",
				"errors": gin.H{vErr.Field: []string{vErr.Message}},
			})
			return
		}
		if errors.Is(err, service.ErrCheckerUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Similarity checker is unavailable. Please try again later.",
			})
			return
		}
		logger.CtxError(c.Request.Context(), "Similarity check failed: error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Similarity check failed.",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}
