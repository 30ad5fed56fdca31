package api

import (
	"github.com/gin-gonic/gin"

	"github.com/renzlucero/capstonehub/internal/api/handler"
	"github.com/renzlucero/capstonehub/internal/api/middleware"
	"github.com/renzlucero/capstonehub/internal/config"
	"github.com/renzlucero/capstonehub/internal/repository"
	"github.com/renzlucero/capstonehub/internal/service"
	"github.com/renzlucero/capstonehub/internal/storage"
)

// RouterDeps bundles everything the HTTP layer needs.
type RouterDeps struct {
	WarmupService   *service.WarmupService
	CheckerService  *service.CheckerService
	CapstoneService *service.CapstoneService
	Capstones       *repository.CapstoneRepository
	Categories      *repository.CategoryRepository
	Documents       storage.DocumentStore
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps RouterDeps, cfg *config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler("capstonehub")
	aiHandler := handler.NewAIHandler(deps.WarmupService)
	checkerHandler := handler.NewCheckerHandler(deps.CheckerService)
	capstoneHandler := handler.NewCapstoneHandler(deps.CapstoneService, deps.Capstones, deps.Documents)
	categoryHandler := handler.NewCategoryHandler(deps.Categories)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Embedding backend warm-up
		v1.GET("/ai/status", aiHandler.Status)
		v1.POST("/ai/warmup", aiHandler.Warmup)

		// Proposal similarity check
		v1.POST("/checker/check", checkerHandler.Check)

		// Capstones
		v1.GET("/capstones", capstoneHandler.List)
		v1.POST("/capstones", capstoneHandler.Create)
		v1.GET("/capstones/:id", capstoneHandler.Show)
		v1.PUT("/capstones/:id", capstoneHandler.Update)
		v1.DELETE("/capstones/:id", capstoneHandler.Archive)
		v1.POST("/capstones/:id/restore", capstoneHandler.Restore)
		v1.POST("/capstones/:id/toggle", capstoneHandler.ToggleActive)
		v1.POST("/capstones/:id/resync", capstoneHandler.Resync)
		v1.POST("/capstones/:id/document", capstoneHandler.UploadDocument)
		v1.GET("/capstones/:id/document", capstoneHandler.DocumentURL)

		// Categories
		v1.GET("/categories", categoryHandler.List)
		v1.POST("/categories", categoryHandler.Create)
		v1.PUT("/categories/:id", categoryHandler.Update)
		v1.POST("/categories/:id/toggle", categoryHandler.ToggleActive)
	}

	return r
}
