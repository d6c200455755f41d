package api

import (
	"net/http"
	"strings"

	"github.com/genbi/genbi/internal/query"
	"github.com/genbi/genbi/internal/sqltext"
)

type adHocQueryRequest struct {
	SQL string `json:"sql"`
}

type adHocQueryResponse struct {
	Rows     []query.Row `json:"rows"`
	RowCount int         `json:"row_count"`
}

// handleAdHocQuery runs operator supplied read-only SQL and returns the raw
// string rows.
func handleAdHocQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Query == nil {
		writeNotConfigured(w, r, "QUERY_NOT_CONFIGURED", "query client is not configured")
		return
	}
	var request adHocQueryRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	sql := strings.TrimSpace(request.SQL)
	if sql == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if !sqltext.IsReadOnly(sql) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only a single SELECT or WITH statement is allowed", false, nil)
		return
	}

	rows, err := deps.Query.Execute(r.Context(), sql)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adHocQueryResponse{Rows: rows, RowCount: len(rows)})
}
