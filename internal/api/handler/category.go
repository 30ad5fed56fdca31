package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/renzlucero/capstonehub/internal/domain"
	"github.com/renzlucero/capstonehub/internal/repository"
)

// CategoryHandler handles category endpoints.
type CategoryHandler struct {
	categories *repository.CategoryRepository
}

// NewCategoryHandler creates a new category handler.
func NewCategoryHandler(categories *repository.CategoryRepository) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

type categoryRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// List handles GET /api/v1/categories. With ?active=true only active
// categories are returned, without pagination.
func (h *CategoryHandler) List(c *gin.Context) {
	if c.Query("active") == "true" {
		categories, err := h.categories.ListActive(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list categories: " + err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": categories})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "15"))

	categories, total, err := h.categories.List(c.Request.Context(), c.Query("search"), page, perPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list categories: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": categories, "total": total})
}

// Create handles POST /api/v1/categories.
func (h *CategoryHandler) Create(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	category := &domain.Category{Name: req.Name, IsActive: true}
	if err := h.categories.Create(c.Request.Context(), category); err != nil {
		if errors.Is(err, repository.ErrCategoryNameTaken) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "Validation failed",
				"errors": gin.H{"name": []string{"The name has already been taken."}},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create category: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": category})
}

// Update handles PUT /api/v1/categories/:id.
func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	category, err := h.categories.GetByID(c.Request.Context(), id)
	if err != nil {
		h.notFoundOr500(c, err)
		return
	}

	category.Name = req.Name
	if err := h.categories.Update(c.Request.Context(), category); err != nil {
		if errors.Is(err, repository.ErrCategoryNameTaken) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "Validation failed",
				"errors": gin.H{"name": []string{"The name has already been taken."}},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update category: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": category})
}

// ToggleActive handles POST /api/v1/categories/:id/toggle.
func (h *CategoryHandler) ToggleActive(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	category, err := h.categories.GetByID(c.Request.Context(), id)
	if err != nil {
		h.notFoundOr500(c, err)
		return
	}

	if err := h.categories.SetActive(c.Request.Context(), id, !category.IsActive); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to toggle category: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_active": !category.IsActive})
}

func (h *CategoryHandler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category id"})
		return 0, false
	}
	return id, true
}

func (h *CategoryHandler) notFoundOr500(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
