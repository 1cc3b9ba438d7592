package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/clinflow/risk-inference-service/internal/booster"
	"github.com/clinflow/risk-inference-service/internal/config"
	"github.com/clinflow/risk-inference-service/internal/logging"
	"github.com/clinflow/risk-inference-service/internal/repository"
	"github.com/clinflow/risk-inference-service/internal/services"
	"github.com/clinflow/risk-inference-service/internal/store"
	"github.com/clinflow/risk-inference-service/pkg/server"
)

func main() {
	var envFile = flag.String("env", "", "Optional .env file to load")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)

	// Initialize database
	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Log startup event
	db.Event("info", "startup", "Server starting", map[string]interface{}{
		"model_name":   cfg.ModelName,
		"model_format": cfg.ModelFormat,
		"http_addr":    cfg.HTTPAddr,
		"db_path":      cfg.DBPath,
	})

	// Initialize repository
	repo := repository.NewSQLiteRepository(db)

	// Log model loading start
	db.Event("info", "model.loading", "Model loading started", map[string]interface{}{
		"format":       cfg.ModelFormat,
		"bundle_path":  cfg.BundlePath,
		"meta_path":    cfg.MetaPath,
		"weights_path": cfg.WeightsPath,
	})

	// Resolve the model artifact. Any failure here is terminal: no
	// prediction surface is started over a missing or partial model.
	model, err := booster.Load(booster.Source{
		Format:      booster.Format(cfg.ModelFormat),
		BundlePath:  cfg.BundlePath,
		MetaPath:    cfg.MetaPath,
		WeightsPath: cfg.WeightsPath,
	})
	if err != nil {
		db.Event("error", "model.failed", "Model loading failed", map[string]interface{}{
			"format": cfg.ModelFormat,
			"error":  err.Error(),
		})
		slog.Error("No valid model available", "error", err)
		os.Exit(1)
	}

	// Log model loading success
	db.Event("info", "model.loaded", "Model loaded successfully", map[string]interface{}{
		"model_name":   cfg.ModelName,
		"num_features": model.NumFeatures(),
		"num_trees":    model.NumTrees(),
	})

	slog.Info("Model loaded",
		"model_name", cfg.ModelName,
		"format", cfg.ModelFormat,
		"num_features", model.NumFeatures(),
		"num_trees", model.NumTrees(),
		"objective", model.Metadata().Objective)

	// Initialize services
	predictionService := services.NewPredictionService(model, repo, cfg.RiskThreshold, cfg.MaxDisplay)

	db.Event("info", "services.init", "Initializing services", map[string]interface{}{
		"http_addr": cfg.HTTPAddr,
		"nats_url":  cfg.NatsURL,
	})

	// Initialize NATS service
	natsService, err := services.NewNATSService(cfg, predictionService)
	if err != nil {
		db.Event("error", "nats.failed", "NATS service initialization failed", map[string]interface{}{
			"nats_url": cfg.NatsURL,
			"error":    err.Error(),
		})
		slog.Error("Failed to create NATS service", "error", err)
		os.Exit(1)
	}

	// Health service answers probes and publishes heartbeats
	healthService := services.NewHealthService(natsService.GetConnection(), cfg, model)

	// Start HTTP server
	httpServer := server.NewServer(cfg.HTTPAddr, predictionService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db.Event("info", "server.ready", "Server ready to accept requests", map[string]interface{}{
		"http_addr":  cfg.HTTPAddr,
		"model_name": cfg.ModelName,
		"nats_url":   cfg.NatsURL,
	})

	go func() {
		if err := httpServer.Start(ctx); err != nil {
			db.Event("error", "http.failed", "HTTP server failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("HTTP server failed", "error", err)
		}
	}()

	go func() {
		if err := natsService.Start(ctx); err != nil {
			db.Event("error", "nats.failed", "NATS service failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("NATS service failed", "error", err)
		}
	}()

	go func() {
		if err := healthService.Start(ctx); err != nil {
			db.Event("error", "health.failed", "Health service failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("Health service failed", "error", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("Shutting down server")
}
