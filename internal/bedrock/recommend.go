package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	MinTopN     = 1
	MaxTopN     = 10
	DefaultTopN = 3
)

var (
	ErrNonJSONOutput = errors.New("knowledge base returned non-JSON output")

	jsonBlockPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

type RecommendationRequest struct {
	ClientID   string
	ClientName string
	Holdings   []string
	TopN       int
}

type Recommendation struct {
	ProductID       string `json:"product_id"`
	ProductName     string `json:"product_name"`
	ProductType     string `json:"product_type"`
	AssetClass      string `json:"asset_class"`
	RiskDescription string `json:"risk_description"`
	Reason          string `json:"reason"`
}

// Recommend asks the structured knowledge base for the best performing
// products the client does not hold yet. At most TopN are returned.
func (s *Service) Recommend(ctx context.Context, req RecommendationRequest) ([]Recommendation, error) {
	if req.TopN < MinTopN || req.TopN > MaxTopN {
		return nil, fmt.Errorf("top_n must be between %d and %d", MinTopN, MaxTopN)
	}
	text, err := s.retrieveAndGenerate(ctx, opRecommend, s.cfg.StructuredKBID, s.cfg.RecommendModelARN, buildRecommendationPrompt(req))
	if err != nil {
		return nil, err
	}
	recommendations, err := parseRecommendations(text, req.TopN)
	if err != nil {
		return nil, &CallError{Operation: opRecommend, Message: err.Error(), Err: err}
	}
	return recommendations, nil
}

// parseRecommendations reads the strict JSON payload, falling back to the
// outermost {...} block when the model wraps it in prose.
func parseRecommendations(text string, topN int) ([]Recommendation, error) {
	var payload struct {
		Recommendations []Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &payload); err != nil {
		block := jsonBlockPattern.FindString(text)
		if block == "" {
			return nil, ErrNonJSONOutput
		}
		if err := json.Unmarshal([]byte(block), &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNonJSONOutput, err)
		}
	}
	recommendations := payload.Recommendations
	if recommendations == nil {
		recommendations = make([]Recommendation, 0)
	}
	if len(recommendations) > topN {
		recommendations = recommendations[:topN]
	}
	return recommendations, nil
}
