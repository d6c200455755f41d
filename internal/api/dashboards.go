package api

import (
	"net/http"
	"time"

	"github.com/genbi/genbi/internal/quicksight"
)

type embedURLRequest struct {
	DashboardID string `json:"dashboard_id"`
	UserARN     string `json:"user_arn"`
}

type embedURLResponse struct {
	EmbedURL  string    `json:"embed_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func handleDashboardEmbedURL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Dashboards == nil {
		writeNotConfigured(w, r, "DASHBOARDS_NOT_CONFIGURED", "dashboard embedding is not configured")
		return
	}
	var request embedURLRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid embed request body", false, map[string]any{"details": err.Error()})
		return
	}
	embed, err := deps.Dashboards.GenerateEmbedURL(r.Context(), quicksight.Request{
		DashboardID: request.DashboardID,
		UserARN:     request.UserARN,
	})
	if err != nil {
		writeEmbedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, embedURLResponse{EmbedURL: embed.URL, ExpiresAt: embed.ExpiresAt.UTC()})
}
