package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/genbi/genbi/internal/audit"
	"github.com/genbi/genbi/internal/auth"
	"github.com/genbi/genbi/internal/bedrock"
	"github.com/genbi/genbi/internal/config"
	"github.com/genbi/genbi/internal/observability"
	"github.com/genbi/genbi/internal/query"
	"github.com/genbi/genbi/internal/quicksight"
	"github.com/genbi/genbi/internal/results"
)

type ReadinessCheck func(ctx context.Context) error

// Querier runs SQL assembled by the handlers. *query.Client satisfies it.
type Querier interface {
	Execute(ctx context.Context, sql string) ([]query.Row, error)
}

type KnowledgeBase interface {
	Answer(ctx context.Context, kb bedrock.KnowledgeBase, question string) (string, error)
	CombinedAnswer(ctx context.Context, question string) (string, error)
	Recommend(ctx context.Context, req bedrock.RecommendationRequest) ([]bedrock.Recommendation, error)
}

type DashboardEmbedder interface {
	GenerateEmbedURL(ctx context.Context, req quicksight.Request) (quicksight.EmbedURL, error)
}

type ExecutionHistory interface {
	ListExecutions(ctx context.Context, limit int) ([]audit.Execution, error)
	GetExecution(ctx context.Context, executionID string) (audit.Execution, error)
}

type DownloadLinker interface {
	DownloadURL(ctx context.Context, executionID string) (results.Link, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Query             Querier
	KnowledgeBase     KnowledgeBase
	Dashboards        DashboardEmbedder
	Executions        ExecutionHistory
	Downloads         DownloadLinker
}

type route struct {
	pattern string
	handler http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := []route{
		{"POST /v1/login", handlerFunc(deps, handleLogin)},
		{"GET /v1/advisors", handlerFunc(deps, handleListAdvisors)},
		{"GET /v1/advisors/{advisor_id}/clients", handlerFunc(deps, handleAdvisorClients)},
		{"GET /v1/clients", handlerFunc(deps, handleListClients)},
		{"GET /v1/clients/{client_id}", handlerFunc(deps, handleGetClient)},
		{"GET /v1/clients/{client_id}/portfolios", handlerFunc(deps, handleClientPortfolios)},
		{"GET /v1/clients/{client_id}/recommendations", handlerFunc(deps, handleRecommendations)},
		{"GET /v1/portfolios/{portfolio_id}", handlerFunc(deps, handleGetPortfolio)},
		{"GET /v1/portfolios/{portfolio_id}/holdings", handlerFunc(deps, handlePortfolioHoldings)},
		{"GET /v1/transactions", handlerFunc(deps, handleListTransactions)},
		{"GET /v1/content", handlerFunc(deps, handleListContent)},
		{"GET /v1/content/{content_id}", handlerFunc(deps, handleGetContent)},
		{"POST /v1/kb/structured", handlerFunc(deps, handleKnowledgeBase(bedrock.Structured))},
		{"POST /v1/kb/unstructured", handlerFunc(deps, handleKnowledgeBase(bedrock.Unstructured))},
		{"POST /v1/kb/combined", handlerFunc(deps, handleCombinedKnowledgeBase)},
		{"POST /v1/dashboards/embed-url", handlerFunc(deps, handleDashboardEmbedURL)},
		{"POST /v1/query", auth.RequireRole(auth.RoleQueryAdmin, handlerFunc(deps, handleAdHocQuery))},
		{"GET /v1/executions", handlerFunc(deps, handleListExecutions)},
		{"GET /v1/executions/{execution_id}", handlerFunc(deps, handleGetExecution)},
		{"GET /v1/executions/{execution_id}/download", handlerFunc(deps, handleExecutionDownload)},
	}

	protected := http.NewServeMux()
	for _, rt := range routes {
		protected.Handle(rt.pattern, rt.handler)
	}

	var protectedHandler http.Handler = auth.AnonymousMiddleware(protected)
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protected)
		}
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if len(cfg.HTTP.CORSOrigins) > 0 {
		middlewares = append(middlewares, cors.Handler(cors.Options{
			AllowedOrigins:   cfg.HTTP.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Trace-ID"},
			ExposedHeaders:   []string{"X-Trace-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func handlerFunc(deps Dependencies, fn func(Dependencies, http.ResponseWriter, *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn(deps, w, r)
	})
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CheckAthenaConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Athena.Database == "" {
			return errors.New("athena database is not configured")
		}
		if cfg.Athena.OutputLocation == "" {
			return errors.New("athena output location is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

func decodeJSONBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
