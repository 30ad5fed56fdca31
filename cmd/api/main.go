package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/renzlucero/capstonehub/internal/api"
	"github.com/renzlucero/capstonehub/internal/config"
	"github.com/renzlucero/capstonehub/internal/logger"
	"github.com/renzlucero/capstonehub/internal/repository"
	"github.com/renzlucero/capstonehub/internal/service"
	"github.com/renzlucero/capstonehub/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	ctx := context.Background()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	capstoneRepo := repository.NewCapstoneRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	cacheRepo := repository.NewCacheRepository(db)

	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Qdrant.VectorSize,
	})
	if err != nil {
		logger.Fatal("Failed to initialize Qdrant repository: %v", err)
	}
	defer qdrantRepo.Close()

	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		logger.Fatal("Failed to ensure Qdrant collection: %v", err)
	}

	// Object storage is optional; without it the document endpoints are off.
	var documentStore storage.DocumentStore
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3Store(&storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			logger.Fatal("Failed to initialize document storage: %v", err)
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			logger.Fatal("Failed to ensure storage bucket: %v", err)
		}
		documentStore = s3Store
	}

	embedding := service.NewOllamaEmbedding(&service.OllamaConfig{
		BaseURL:        cfg.Ollama.BaseURL,
		Model:          cfg.Ollama.Model,
		Dimensions:     cfg.Qdrant.VectorSize,
		ConnectTimeout: cfg.Ollama.ConnectTimeout,
		ProbeTimeout:   cfg.Ollama.ProbeTimeout,
	})

	warmupService := service.NewWarmupService(embedding, cacheRepo, appLogger, service.WarmupConfig{
		Prompt:       cfg.Warmup.Prompt,
		Timeout:      cfg.Warmup.Timeout,
		LockLease:    cfg.Warmup.LockLease,
		WarmDuration: cfg.Warmup.WarmDuration,
	})

	checkerService := service.NewCheckerService(categoryRepo, embedding, qdrantRepo, appLogger, service.CheckerConfig{
		DefaultLimit:     cfg.Checker.DefaultLimit,
		MaxLimit:         cfg.Checker.MaxLimit,
		DefaultThreshold: cfg.Checker.DefaultThreshold,
		EmbedTimeout:     cfg.Ollama.CheckTimeout,
	})

	capstoneService := service.NewCapstoneService(capstoneRepo, categoryRepo, embedding, qdrantRepo, appLogger, cfg.Ollama.IndexTimeout)

	router := api.SetupRouter(api.RouterDeps{
		WarmupService:   warmupService,
		CheckerService:  checkerService,
		CapstoneService: capstoneService,
		Capstones:       capstoneRepo,
		Categories:      categoryRepo,
		Documents:       documentStore,
	}, &cfg.Server)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting API server on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
