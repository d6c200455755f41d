package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/genbi/genbi/internal/config"
	"github.com/genbi/genbi/internal/demo/seed"
	"github.com/genbi/genbi/internal/observability"
	s3store "github.com/genbi/genbi/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("genbi-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	seedCfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	objectStore, err := s3store.New(ctx, cfg.ObjectStore)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	service, err := seed.NewService(seedCfg, objectStore, logger)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("seeding demo dataset",
		slog.String("bucket", cfg.ObjectStore.Bucket),
		slog.String("prefix", cfg.ObjectStore.Prefix),
		slog.Int64("seed", seedCfg.Seed),
		slog.Int("clients", seedCfg.Clients),
		slog.Bool("overwrite", seedCfg.Overwrite),
	)
	summaries, err := service.Run(ctx)
	if err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	seeded := 0
	for _, summary := range summaries {
		if !summary.Skipped {
			seeded++
		}
	}
	logger.Info("seeding finished", slog.Int("tables", len(summaries)), slog.Int("written", seeded))
}
