package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genbi/genbi/internal/api"
	auditpostgres "github.com/genbi/genbi/internal/audit/postgres"
	"github.com/genbi/genbi/internal/auth"
	"github.com/genbi/genbi/internal/awsconf"
	"github.com/genbi/genbi/internal/bedrock"
	"github.com/genbi/genbi/internal/config"
	"github.com/genbi/genbi/internal/observability"
	"github.com/genbi/genbi/internal/query"
	athenaengine "github.com/genbi/genbi/internal/query/athena"
	duckdbengine "github.com/genbi/genbi/internal/query/duckdb"
	"github.com/genbi/genbi/internal/quicksight"
	"github.com/genbi/genbi/internal/results"
	s3store "github.com/genbi/genbi/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("genbi-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	startupCtx := context.Background()

	awsCfg, err := awsconf.Load(startupCtx, cfg.AWS)
	if err != nil {
		logger.Error("failed to load aws config", slog.Any("error", err))
		os.Exit(1)
	}

	readiness := []api.ReadinessCheck{}
	deps := api.Dependencies{
		Logger:            logger,
		DependencyTimeout: time.Second,
	}

	var recorder query.Recorder
	if cfg.Audit.DSN != "" {
		auditDB, err := auditpostgres.Open(startupCtx, auditpostgres.DBConfig{
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
		defer func() { _ = auditDB.Close() }()

		auditRepo := auditpostgres.NewRepository(auditDB)
		recorder = auditRepo
		deps.Executions = auditRepo
		readiness = append(readiness, auditRepo.HealthCheck)
	}

	var engine query.Engine
	switch cfg.Engine.Backend {
	case config.BackendAthena:
		athena := athenaengine.New(awsCfg)
		engine = athena
		linker, err := results.NewLinker(awsCfg, athena, cfg.Results.PresignExpiry)
		if err != nil {
			logger.Error("failed to initialize result links", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Downloads = linker
		readiness = append(readiness, api.CheckAthenaConfig(cfg))
	case config.BackendDuckDB:
		objectStore, err := s3store.New(startupCtx, cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		duck, err := duckdbengine.NewEngine(objectStore, duckdbengine.Options{Logger: logger})
		if err != nil {
			logger.Error("failed to initialize duckdb engine", slog.Any("error", err))
			os.Exit(1)
		}
		defer duck.Wait()
		engine = duck
		readiness = append(readiness, api.CheckObjectStoreConfig(cfg), objectStore.HealthCheck)
	}

	queryClient, err := query.NewClient(engine, query.Config{
		Database:       cfg.Athena.Database,
		OutputLocation: cfg.Athena.OutputLocation,
		Workgroup:      cfg.Athena.Workgroup,
		MaxRows:        cfg.Athena.MaxRows,
		PollInterval:   cfg.Athena.PollInterval,
		PollTimeout:    cfg.Athena.PollTimeout,
	}, logger, recorder)
	if err != nil {
		logger.Error("failed to initialize query client", slog.Any("error", err))
		os.Exit(1)
	}
	deps.Query = queryClient

	knowledgeBase, err := bedrock.New(awsCfg, bedrock.Config{
		StructuredKBID:    cfg.Bedrock.StructuredKBID,
		UnstructuredKBID:  cfg.Bedrock.UnstructuredKBID,
		KBModelARN:        cfg.Bedrock.KBModelARN,
		RecommendModelARN: cfg.Bedrock.RecommendModelARN,
		SummaryModelID:    cfg.Bedrock.SummaryModelID,
		MaxTokens:         cfg.Bedrock.MaxTokens,
		Temperature:       cfg.Bedrock.Temperature,
		Timeout:           cfg.Bedrock.Timeout,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize bedrock client", slog.Any("error", err))
		os.Exit(1)
	}
	deps.KnowledgeBase = knowledgeBase

	dashboards, err := quicksight.New(awsCfg, quicksight.Config{
		AccountID:              cfg.QuickSight.AccountID,
		Namespace:              cfg.QuickSight.Namespace,
		SessionLifetimeMinutes: cfg.QuickSight.SessionLifetimeMinutes,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize quicksight client", slog.Any("error", err))
		os.Exit(1)
	}
	deps.Dashboards = dashboards

	deps.Readiness = api.CombineReadinessChecks(readiness...)
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("backend", string(cfg.Engine.Backend)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
