package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/genbi/genbi/internal/audit"
	"github.com/genbi/genbi/internal/results"
)

type executionView struct {
	ExecutionID string    `json:"execution_id,omitempty"`
	SQL         string    `json:"sql"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	Rows        int       `json:"rows"`
	Polls       int       `json:"polls"`
	TraceID     string    `json:"trace_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMS  int64     `json:"duration_ms"`
}

type downloadView struct {
	ExecutionID string    `json:"execution_id"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func handleListExecutions(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Executions == nil {
		writeNotConfigured(w, r, "AUDIT_NOT_CONFIGURED", "execution history is not configured")
		return
	}
	limit := audit.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, map[string]any{"limit": raw})
			return
		}
		limit = parsed
	}

	executions, err := deps.Executions.ListExecutions(r.Context(), audit.ClampLimit(limit))
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "AUDIT_READ_FAILED", "failed to list executions", true, map[string]any{"details": err.Error()})
		return
	}
	items := make([]executionView, 0, len(executions))
	for _, execution := range executions {
		items = append(items, newExecutionView(execution))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func handleGetExecution(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Executions == nil {
		writeNotConfigured(w, r, "AUDIT_NOT_CONFIGURED", "execution history is not configured")
		return
	}
	executionID := r.PathValue("execution_id")
	execution, err := deps.Executions.GetExecution(r.Context(), executionID)
	switch {
	case err == nil:
	case errors.Is(err, audit.ErrNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "EXECUTION_NOT_FOUND", "execution not found", false, map[string]any{"execution_id": executionID})
		return
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "AUDIT_READ_FAILED", "failed to read execution", true, map[string]any{
			"execution_id": executionID,
			"details":      err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, newExecutionView(execution))
}

func newExecutionView(execution audit.Execution) executionView {
	return executionView{
		ExecutionID: execution.ExecutionID,
		SQL:         execution.SQL,
		Outcome:     execution.Outcome,
		Reason:      execution.Reason,
		Rows:        execution.Rows,
		Polls:       execution.Polls,
		TraceID:     execution.TraceID,
		StartedAt:   execution.StartedAt.UTC(),
		FinishedAt:  execution.FinishedAt.UTC(),
		DurationMS:  execution.Duration().Milliseconds(),
	}
}

func handleExecutionDownload(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Downloads == nil {
		writeNotConfigured(w, r, "DOWNLOADS_NOT_CONFIGURED", "result downloads are not configured")
		return
	}
	executionID := r.PathValue("execution_id")
	link, err := deps.Downloads.DownloadURL(r.Context(), executionID)
	switch {
	case err == nil:
	case errors.Is(err, results.ErrNotFinished):
		writeError(r.Context(), w, http.StatusConflict, "EXECUTION_NOT_FINISHED", err.Error(), true, map[string]any{"execution_id": executionID})
		return
	case errors.Is(err, results.ErrNoOutput):
		writeError(r.Context(), w, http.StatusNotFound, "EXECUTION_OUTPUT_MISSING", err.Error(), false, map[string]any{"execution_id": executionID})
		return
	default:
		writeError(r.Context(), w, http.StatusBadGateway, "DOWNLOAD_LINK_FAILED", "failed to create download link", true, map[string]any{
			"execution_id": executionID,
			"details":      err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, downloadView{
		ExecutionID: link.ExecutionID,
		URL:         link.URL,
		ExpiresAt:   link.ExpiresAt.UTC(),
	})
}
