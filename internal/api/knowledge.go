package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/genbi/genbi/internal/bedrock"
	"github.com/genbi/genbi/internal/sqltext"
)

type knowledgeBaseRequest struct {
	Query string `json:"query"`
}

type knowledgeBaseResponse struct {
	Answer string `json:"answer"`
}

type recommendationsResponse struct {
	ClientID        string                   `json:"client_id"`
	ClientName      string                   `json:"client_name"`
	Recommendations []bedrock.Recommendation `json:"recommendations"`
}

func handleKnowledgeBase(kb bedrock.KnowledgeBase) func(Dependencies, http.ResponseWriter, *http.Request) {
	return func(deps Dependencies, w http.ResponseWriter, r *http.Request) {
		question, ok := readQuestion(deps, w, r)
		if !ok {
			return
		}
		answer, err := deps.KnowledgeBase.Answer(r.Context(), kb, question)
		if err != nil {
			writeBedrockError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, knowledgeBaseResponse{Answer: answer})
	}
}

func handleCombinedKnowledgeBase(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	question, ok := readQuestion(deps, w, r)
	if !ok {
		return
	}
	answer, err := deps.KnowledgeBase.CombinedAnswer(r.Context(), question)
	if err != nil {
		writeBedrockError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, knowledgeBaseResponse{Answer: answer})
}

func readQuestion(deps Dependencies, w http.ResponseWriter, r *http.Request) (string, bool) {
	if deps.KnowledgeBase == nil {
		writeNotConfigured(w, r, "KNOWLEDGE_BASE_NOT_CONFIGURED", "knowledge base client is not configured")
		return "", false
	}
	var request knowledgeBaseRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid knowledge base request body", false, map[string]any{"details": err.Error()})
		return "", false
	}
	question := strings.TrimSpace(request.Query)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_REQUIRED", "query is required", false, nil)
		return "", false
	}
	return question, true
}

func handleRecommendations(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.KnowledgeBase == nil {
		writeNotConfigured(w, r, "KNOWLEDGE_BASE_NOT_CONFIGURED", "knowledge base client is not configured")
		return
	}
	topN := bedrock.DefaultTopN
	if raw := r.URL.Query().Get("top_n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < bedrock.MinTopN || parsed > bedrock.MaxTopN {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_TOP_N",
				fmt.Sprintf("top_n must be between %d and %d", bedrock.MinTopN, bedrock.MaxTopN), false, map[string]any{"top_n": raw})
			return
		}
		topN = parsed
	}

	clientID := r.PathValue("client_id")
	client, found, ok := lookupClient(deps, w, r, clientID)
	if !ok {
		return
	}
	if !found {
		writeError(r.Context(), w, http.StatusNotFound, "CLIENT_NOT_FOUND", "client not found", false, nil)
		return
	}

	sql := fmt.Sprintf("SELECT DISTINCT product_id FROM portfolio_holdings WHERE client_id = %s", sqltext.Quote(clientID))
	holdings, ok := runQuery(deps, w, r, sql, func(d *rowDecoder) string {
		return d.str("product_id")
	})
	if !ok {
		return
	}

	clientName := strings.TrimSpace(client.FirstName + " " + client.LastName)
	recommendations, err := deps.KnowledgeBase.Recommend(r.Context(), bedrock.RecommendationRequest{
		ClientID:   clientID,
		ClientName: clientName,
		Holdings:   holdings,
		TopN:       topN,
	})
	if err != nil {
		writeBedrockError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{
		ClientID:        clientID,
		ClientName:      clientName,
		Recommendations: recommendations,
	})
}
