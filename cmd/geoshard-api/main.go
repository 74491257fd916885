package main

import (
	"flag"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"geoshard-pipeline/internal/api"
	"geoshard-pipeline/internal/api/handler"
	"geoshard-pipeline/internal/config"
	"geoshard-pipeline/internal/metrics"
	"geoshard-pipeline/internal/notify"
	"geoshard-pipeline/internal/pipeline"
	"geoshard-pipeline/internal/storage"
	"geoshard-pipeline/internal/store"
	"geoshard-pipeline/pkg/router"
)

// @title Geoshard Pipeline API
// @version 1.0
// @description Upload, status, and listing endpoints for the geospatial shard-processing pipeline.
// @BasePath /api/v1
func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zapCfg := zap.NewProductionConfig()
	if *verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	jobs, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open job store", zap.Error(err))
	}
	defer jobs.Close()

	input, err := storage.NewDirStore(cfg.InputDir)
	if err != nil {
		logger.Fatal("failed to open input store", zap.Error(err))
	}
	output, err := storage.NewDirStore(cfg.OutputDir)
	if err != nil {
		logger.Fatal("failed to open output store", zap.Error(err))
	}
	outbox, err := notify.NewFileOutbox(cfg.OutboxDir)
	if err != nil {
		logger.Fatal("failed to open notification outbox", zap.Error(err))
	}

	workflow := pipeline.NewWorkflow(pipeline.Deps{
		Input:       input,
		Output:      output,
		Jobs:        jobs,
		Sink:        metrics.NewLogSink(logger),
		Notifier:    outbox,
		MaxFileSize: cfg.MaxFileSizeBytes,
		MaxShards:   cfg.MaxShards,
		Log:         logger,
	})

	h := handler.New(input, jobs, workflow, cfg.MaxFileSizeBytes, logger)
	r := router.New()
	api.RegisterRoutes(r, h)

	if err := r.Start(cfg.ListenAddr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
