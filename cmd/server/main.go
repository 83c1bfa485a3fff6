package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/el-gladiador/medflow-backend/internal/config"
	"github.com/el-gladiador/medflow-backend/internal/extract"
	"github.com/el-gladiador/medflow-backend/internal/handler"
	"github.com/el-gladiador/medflow-backend/internal/inference"
	"github.com/el-gladiador/medflow-backend/internal/logging"
	"github.com/el-gladiador/medflow-backend/internal/port"
	"github.com/el-gladiador/medflow-backend/internal/preprocess"
	"github.com/el-gladiador/medflow-backend/internal/prompt"
	"github.com/el-gladiador/medflow-backend/internal/router"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(&cfg.Log)

	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prompt.NewRegistry()
	pipeline := preprocess.NewPipeline(logger)

	// An empty backend URL disables AI extraction rather than failing
	// startup; the API then answers 503 on extraction requests.
	var client port.VisionInference
	var svc port.ExtractionService
	if cfg.Inference.BaseURL == "" {
		logger.Info().Msg("inference backend not configured - AI extraction disabled")
	} else {
		logger.Info().Str("base_url", cfg.Inference.BaseURL).Msg("connecting to inference backend")
		infClient := inference.NewClient(&cfg.Inference, logger)
		client = infClient
		svc = extract.NewService(registry, pipeline, infClient, logger)

		// Non-blocking readiness probe; a cold backend is logged, not fatal.
		health := infClient.Health(context.Background())
		if ready, _ := health["ready"].(bool); ready {
			logger.Info().Any("health", health).Msg("inference backend is ready")
		} else {
			logger.Warn().Any("health", health).Msg("inference backend not yet ready (may be cold starting)")
		}
	}

	extractH := handler.NewExtractHandler(svc, logger)
	healthH := handler.NewHealthHandler(client)

	r := router.Setup(extractH, healthH, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info().Str("addr", cfg.Server.Port).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
