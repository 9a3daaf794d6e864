package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/detection-selector/internal/clients/metalearn"
	"github.com/aristath/detection-selector/internal/clients/tsfeatures"
	"github.com/aristath/detection-selector/internal/config"
	"github.com/aristath/detection-selector/internal/database"
	"github.com/aristath/detection-selector/internal/metadata"
	"github.com/aristath/detection-selector/internal/modules/selection"
	"github.com/aristath/detection-selector/internal/modules/selection/jobs"
	"github.com/aristath/detection-selector/internal/scheduler"
	"github.com/aristath/detection-selector/internal/server"
	"github.com/aristath/detection-selector/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "error"})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting detection selector")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(metadata.InitSchema, selection.InitSchema); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Collaborator microservice clients
	classifierFactory := metalearn.NewClient(cfg.MetaLearnServiceURL, log)
	featureExtractor := tsfeatures.NewClient(cfg.TsFeaturesServiceURL, log)

	// Selection module
	metadataRepo := metadata.NewRepository(db.Conn(), log)
	runsRepo := selection.NewRunsRepository(db.Conn(), log)
	manager := selection.NewManager(metadataRepo, classifierFactory, featureExtractor, cfg.ScaleParams, log)

	// Metadata may not be seeded yet; the service can be loaded later via /reload
	if _, err := manager.Reload(); err != nil {
		log.Warn().Err(err).Msg("Selection service not loaded at startup")
	}

	// Initialize scheduler
	sched := scheduler.New(log)
	retrain := jobs.NewRetrainJob(manager, runsRepo, log)
	if err := sched.AddJob(cfg.RetrainSchedule, retrain); err != nil {
		log.Fatal().Err(err).Msg("Failed to register retrain job")
	}
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Selection: selection.NewHandler(manager, runsRepo, log),
		DevMode:   cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
