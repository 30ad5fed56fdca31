package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/renzlucero/capstonehub/internal/config"
	"github.com/renzlucero/capstonehub/internal/logger"
	"github.com/renzlucero/capstonehub/internal/repository"
	"github.com/renzlucero/capstonehub/internal/service"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "capstonehub-resync",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	id := flag.Int64("id", 0, "Resync a single capstone by id")
	limit := flag.Int("limit", 100, "Maximum number of pending/failed records to resync")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	capstoneRepo := repository.NewCapstoneRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)

	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Qdrant.VectorSize,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize Qdrant repository")
	}
	defer qdrantRepo.Close()

	// Cancel on interrupt so a long batch stops cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		appLogger.Warn("Interrupted, stopping resync")
		cancel()
	}()

	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
	}

	embedding := service.NewOllamaEmbedding(&service.OllamaConfig{
		BaseURL:        cfg.Ollama.BaseURL,
		Model:          cfg.Ollama.Model,
		Dimensions:     cfg.Qdrant.VectorSize,
		ConnectTimeout: cfg.Ollama.ConnectTimeout,
		ProbeTimeout:   cfg.Ollama.ProbeTimeout,
	})

	capstoneService := service.NewCapstoneService(capstoneRepo, categoryRepo, embedding, qdrantRepo, appLogger, cfg.Ollama.IndexTimeout)

	if *id > 0 {
		if err := capstoneService.Resync(ctx, *id); err != nil {
			appLogger.WithError(err).WithField("capstone_id", *id).Fatal("Resync failed")
		}
		appLogger.WithField("capstone_id", *id).Info("Capstone resynced")
		return
	}

	synced, failed, err := capstoneService.ResyncBatch(ctx, *limit)
	if err != nil {
		appLogger.WithError(err).Fatal("Resync batch failed")
	}

	appLogger.WithFields(logger.Fields{
		"synced": synced,
		"failed": failed,
	}).Info("Resync complete")

	if failed > 0 {
		os.Exit(1)
	}
}
