package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cskoven/go-flood-panel/internal/config"
	"github.com/cskoven/go-flood-panel/internal/logging"
	"github.com/cskoven/go-flood-panel/internal/metrics"
	"github.com/cskoven/go-flood-panel/internal/pipeline"
	"github.com/cskoven/go-flood-panel/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("pipeline starting",
		"registry", cfg.Data.RegistryCSV,
		"output", cfg.Data.OutputDir,
		"window", cfg.Study.StartYear,
	)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("interrupted, cancelling run")
		cancel()
	}()

	collector := metrics.NewCollector("flood_panel")
	p := pipeline.New(cfg, collector, db)
	if err := p.Run(ctx); err != nil {
		logging.Fatalf("Pipeline failed: %v", err)
	}

	slog.Info("pipeline complete", "output", cfg.Data.OutputDir)
}
