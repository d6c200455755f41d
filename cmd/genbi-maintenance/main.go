package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	auditpostgres "github.com/genbi/genbi/internal/audit/postgres"
	"github.com/genbi/genbi/internal/config"
	"github.com/genbi/genbi/internal/demo/seed"
	"github.com/genbi/genbi/internal/maintenance"
	"github.com/genbi/genbi/internal/observability"
	s3store "github.com/genbi/genbi/internal/storage/s3"
)

func main() {
	once := flag.Bool("once", false, "run retention and integrity once, then exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv("genbi-maintenance")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	svc := &maintenance.Service{
		Config: maintenance.Config{
			RetentionInterval: cfg.Maintenance.RetentionInterval,
			IntegrityInterval: cfg.Maintenance.IntegrityInterval,
			AuditRetention:    cfg.Audit.Retention,
		},
		Logger: logger,
	}

	if cfg.Audit.DSN != "" {
		var db *sql.DB
		db, err = auditpostgres.Open(context.Background(), auditpostgres.DBConfig{
			DSN:             cfg.Audit.DSN,
			MaxOpenConns:    cfg.Audit.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.MaxIdleConns,
			ConnMaxIdleTime: cfg.Audit.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open audit db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		svc.Audit = auditpostgres.NewRepository(db)
	}

	if cfg.Engine.Backend == config.BackendDuckDB {
		store, err := s3store.New(context.Background(), cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		svc.ObjectStore = store
		svc.Config.Tables = seed.TableNames()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		failed := false
		if svc.Audit != nil && cfg.Audit.Retention > 0 {
			summary, err := svc.RunRetentionOnce(ctx)
			if err != nil {
				logger.Error("audit retention failed", slog.Any("error", err))
				failed = true
			} else {
				logger.Info("audit retention completed", slog.Any("summary", summary))
			}
		}
		if svc.ObjectStore != nil {
			summary, err := svc.RunIntegrityCheckOnce(ctx)
			if err != nil {
				logger.Error("dataset integrity check failed", slog.Any("error", err), slog.Any("summary", summary))
				failed = true
			} else {
				logger.Info("dataset integrity check completed", slog.Any("summary", summary))
			}
		}
		if failed {
			os.Exit(1)
		}
		return
	}

	logger.Info("maintenance worker started")
	if err := svc.Run(ctx); err != nil {
		logger.Error("maintenance worker failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("maintenance worker stopped")
}
