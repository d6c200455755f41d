package bedrock

import (
	"fmt"
	"strings"
)

func buildSummaryPrompt(question, structured, unstructured string) string {
	return "You are a helpful AI assistant. Use the context below to answer the user's question.\n\n" +
		fmt.Sprintf("Context:\n%s\n\n%s\n\n", structured, unstructured) +
		fmt.Sprintf("User Question:\n%s\n", question)
}

func buildRecommendationPrompt(req RecommendationRequest) string {
	holdings := "[" + strings.Join(quoteAll(req.Holdings), ", ") + "]"
	lines := []string{
		"You are an investment assistant using the database connected to this Knowledge Base.",
		"",
		fmt.Sprintf("Goal: Recommend the top %d performing products that client %q (id: %s) has NOT invested in yet.", req.TopN, req.ClientName, req.ClientID),
		"",
		"Data assumptions:",
		"- Table products(product_id, product_name, product_type, asset_class, risk_description, is_active)",
		"- Table product_performance(product_id, y1_return, ytd_return, sharpe_ratio)",
		"- Table portfolio_holdings(client_id, product_id)",
		"",
		"Rules:",
		"- Consider only active products (is_active = true).",
		fmt.Sprintf("- Exclude products with product_id in this list: %s.", holdings),
		"- Rank primarily by y1_return (DESC). If y1_return is NULL, use ytd_return. Break ties with sharpe_ratio (DESC).",
		"- For each recommended product, include:",
		"  product_id, product_name, product_type, asset_class, risk_description,",
		fmt.Sprintf("  and a short reason personalized for %s.", req.ClientName),
		"",
		"Output format:",
		"Return ONLY valid JSON with this exact schema:",
		`{"recommendations": [{"product_id": "string", "product_name": "string", "product_type": "string", "asset_class": "string", "risk_description": "string", "reason": "string"}]}`,
		"No markdown, no extra text. JSON only.",
	}
	return strings.Join(lines, "\n")
}

func quoteAll(values []string) []string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		quoted = append(quoted, "'"+value+"'")
	}
	return quoted
}
