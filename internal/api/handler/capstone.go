package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/renzlucero/capstonehub/internal/repository"
	"github.com/renzlucero/capstonehub/internal/service"
	"github.com/renzlucero/capstonehub/internal/storage"
)

// CapstoneHandler handles capstone repository endpoints.
type CapstoneHandler struct {
	capstoneService *service.CapstoneService
	capstones       *repository.CapstoneRepository
	documents       storage.DocumentStore
}

// NewCapstoneHandler creates a new capstone handler. documents may be nil
// when object storage is disabled; the document endpoints then return 503.
func NewCapstoneHandler(capstoneService *service.CapstoneService, capstones *repository.CapstoneRepository, documents storage.DocumentStore) *CapstoneHandler {
	return &CapstoneHandler{
		capstoneService: capstoneService,
		capstones:       capstones,
		documents:       documents,
	}
}

type capstoneRequest struct {
	Title                 string `json:"title" binding:"required,max=255"`
	CategoryID            int64  `json:"category_id" binding:"required"`
	Abstract              string `json:"abstract" binding:"required"`
	AcademicYear          string `json:"academic_year" binding:"max=20"`
	Authors               string `json:"authors"`
	Adviser               string `json:"adviser"`
	StatementOfTheProblem string `json:"statement_of_the_problem"`
	Objectives            string `json:"objectives"`
}

// List handles GET /api/v1/capstones.
func (h *CapstoneHandler) List(c *gin.Context) {
	q := repository.CapstoneQuery{
		Search:       c.Query("search"),
		AcademicYear: c.Query("academic_year"),
		Archived:     c.Query("archived") == "true",
	}
	if v := c.Query("category_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			q.CategoryID = id
		}
	}
	if v := c.Query("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil {
			q.Page = page
		}
	}
	if v := c.Query("per_page"); v != "" {
		if perPage, err := strconv.Atoi(v); err == nil {
			q.PerPage = perPage
		}
	}

	capstones, total, err := h.capstones.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list capstones: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  capstones,
		"total": total,
	})
}

// Create handles POST /api/v1/capstones. The database record is committed
// before indexing, so an indexing failure still returns the created record
// (status 201) with embedding_status=failed and a warning.
func (h *CapstoneHandler) Create(c *gin.Context) {
	var req capstoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	capstone, err := h.capstoneService.Create(c.Request.Context(), &service.CreateInput{
		Title:                 req.Title,
		CategoryID:            req.CategoryID,
		Abstract:              req.Abstract,
		AcademicYear:          req.AcademicYear,
		Authors:               req.Authors,
		Adviser:               req.Adviser,
		StatementOfTheProblem: req.StatementOfTheProblem,
		Objectives:            req.Objectives,
	})
	if err != nil {
		if errors.Is(err, repository.ErrTitleTaken) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "Validation failed",
				"errors": gin.H{"title": []string{"The title has already been taken."}},
			})
			return
		}
		if errors.Is(err, service.ErrIndexingFailed) && capstone != nil {
			c.JSON(http.StatusCreated, gin.H{
				"data":    capstone,
				"warning": "Capstone saved but could not be indexed for similarity search yet.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create capstone: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": capstone})
}

// Show handles GET /api/v1/capstones/:id.
func (h *CapstoneHandler) Show(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	capstone, err := h.capstones.GetByIDWithArchived(c.Request.Context(), id)
	if err != nil {
		h.notFoundOr500(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": capstone})
}

// Update handles PUT /api/v1/capstones/:id.
func (h *CapstoneHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req capstoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	capstone, err := h.capstoneService.Update(c.Request.Context(), id, &service.UpdateInput{
		Title:                 req.Title,
		CategoryID:            req.CategoryID,
		Abstract:              req.Abstract,
		AcademicYear:          req.AcademicYear,
		Authors:               req.Authors,
		Adviser:               req.Adviser,
		StatementOfTheProblem: req.StatementOfTheProblem,
		Objectives:            req.Objectives,
	})
	if err != nil {
		if errors.Is(err, repository.ErrTitleTaken) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "Validation failed",
				"errors": gin.H{"title": []string{"The title has already been taken."}},
			})
			return
		}
		h.notFoundOr500(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": capstone})
}

// Archive handles DELETE /api/v1/capstones/:id (soft delete).
func (h *CapstoneHandler) Archive(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.capstoneService.Archive(c.Request.Context(), id); err != nil {
		h.notFoundOr500(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Capstone archived"})
}

// Restore handles POST /api/v1/capstones/:id/restore.
func (h *CapstoneHandler) Restore(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.capstoneService.Restore(c.Request.Context(), id); err != nil {
		h.notFoundOr500(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Capstone restored"})
}

// ToggleActive handles POST /api/v1/capstones/:id/toggle.
func (h *CapstoneHandler) ToggleActive(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	capstone, err := h.capstones.GetByID(c.Request.Context(), id)
	if err != nil {
		h.notFoundOr500(c, err)
		return
	}

	if err := h.capstones.SetActive(c.Request.Context(), id, !capstone.IsActive); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to toggle capstone: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_active": !capstone.IsActive})
}

// Resync handles POST /api/v1/capstones/:id/resync.
func (h *CapstoneHandler) Resync(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.capstoneService.Resync(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrIndexingFailed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Indexing backend is unavailable. Please try again later.",
			})
			return
		}
		h.notFoundOr500(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Capstone re-indexed"})
}

// UploadDocument handles POST /api/v1/capstones/:id/document.
func (h *CapstoneHandler) UploadDocument(c *gin.Context) {
	if h.documents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Document storage is not configured",
		})
		return
	}

	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if _, err := h.capstones.GetByID(c.Request.Context(), id); err != nil {
		h.notFoundOr500(c, err)
		return
	}

	fileHeader, err := c.FormFile("document")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "A 'document' file field is required",
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != ".pdf" && ext != ".doc" && ext != ".docx" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Only PDF and Word documents are accepted",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read uploaded file: " + err.Error(),
		})
		return
	}
	defer file.Close()

	key := fmt.Sprintf("capstones/%d/%s%s", id, uuid.New().String(), ext)
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.documents.Upload(c.Request.Context(), key, file, fileHeader.Size, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store document: " + err.Error(),
		})
		return
	}

	if err := h.capstones.SetDocumentKey(c.Request.Context(), id, key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to record document: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"document_key": key})
}

// DocumentURL handles GET /api/v1/capstones/:id/document.
func (h *CapstoneHandler) DocumentURL(c *gin.Context) {
	if h.documents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Document storage is not configured",
		})
		return
	}

	id, ok := h.pathID(c)
	if !ok {
		return
	}

	capstone, err := h.capstones.GetByIDWithArchived(c.Request.Context(), id)
	if err != nil {
		h.notFoundOr500(c, err)
		return
	}
	if capstone.DocumentKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Capstone has no document"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": h.documents.GetURL(capstone.DocumentKey)})
}

func (h *CapstoneHandler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid capstone id"})
		return 0, false
	}
	return id, true
}

func (h *CapstoneHandler) notFoundOr500(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Capstone not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
