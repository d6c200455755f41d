package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/genbi/genbi/internal/sqltext"
)

const (
	defaultClientLimit      = 100
	defaultTransactionLimit = 200
	defaultContentLimit     = 100
	maxListLimit            = 1000
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func handleLogin(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request loginRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid login request body", false, map[string]any{"details": err.Error()})
		return
	}
	if request.Username == "" || request.Password == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "CREDENTIALS_REQUIRED", "username and password are required", false, nil)
		return
	}

	sql := fmt.Sprintf(`SELECT "UserId", "Role" FROM role WHERE "Aws User Name" = %s AND "user_password" = %s LIMIT 1`,
		sqltext.Quote(request.Username), sqltext.Quote(request.Password))
	users, ok := runQuery(deps, w, r, sql, func(d *rowDecoder) loginResponse {
		return loginResponse{UserID: d.str("UserId"), Role: d.str("Role")}
	})
	if !ok {
		return
	}
	if len(users) == 0 {
		writeError(r.Context(), w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, users[0])
}

func handleListAdvisors(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	advisors, ok := runQuery(deps, w, r, "SELECT advisor_id, first_name, last_name, email FROM advisors", decodeAdvisor)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, advisors)
}

func handleAdvisorClients(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sql := fmt.Sprintf(`SELECT c.client_id, c.first_name, c.last_name, c.age
FROM clients c
JOIN client_advisor_assignments a ON a.client_id = c.client_id
WHERE a.advisor_id = %s`, sqltext.Quote(r.PathValue("advisor_id")))
	clients, ok := runQuery(deps, w, r, sql, decodeClient)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func handleListClients(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultClientLimit)
	if !ok {
		return
	}
	sql := fmt.Sprintf("SELECT client_id, first_name, last_name, age FROM clients LIMIT %d", limit)
	clients, ok := runQuery(deps, w, r, sql, decodeClient)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func handleGetClient(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	client, found, ok := lookupClient(deps, w, r, r.PathValue("client_id"))
	if !ok {
		return
	}
	if !found {
		writeError(r.Context(), w, http.StatusNotFound, "CLIENT_NOT_FOUND", "client not found", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func lookupClient(deps Dependencies, w http.ResponseWriter, r *http.Request, clientID string) (clientView, bool, bool) {
	sql := fmt.Sprintf(`SELECT client_id, first_name, last_name, age
FROM clients
WHERE client_id = %s
LIMIT 1`, sqltext.Quote(clientID))
	clients, ok := runQuery(deps, w, r, sql, decodeClient)
	if !ok {
		return clientView{}, false, false
	}
	if len(clients) == 0 {
		return clientView{}, false, true
	}
	return clients[0], true, true
}

func handleClientPortfolios(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sql := fmt.Sprintf(`SELECT portfolio_id, client_id, portfolio_name, total_value
FROM portfolios
WHERE client_id = %s`, sqltext.Quote(r.PathValue("client_id")))
	portfolios, ok := runQuery(deps, w, r, sql, decodePortfolio)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, portfolios)
}

func handleGetPortfolio(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sql := fmt.Sprintf(`SELECT portfolio_id, client_id, portfolio_name, total_value
FROM portfolios
WHERE portfolio_id = %s
LIMIT 1`, sqltext.Quote(r.PathValue("portfolio_id")))
	portfolios, ok := runQuery(deps, w, r, sql, decodePortfolio)
	if !ok {
		return
	}
	if len(portfolios) == 0 {
		writeError(r.Context(), w, http.StatusNotFound, "PORTFOLIO_NOT_FOUND", "portfolio not found", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, portfolios[0])
}

func handlePortfolioHoldings(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sql := fmt.Sprintf(`SELECT h.product_id, h.shares, h.market_value, p.product_name
FROM portfolio_holdings h
JOIN products p ON p.product_id = h.product_id
WHERE h.portfolio_id = %s`, sqltext.Quote(r.PathValue("portfolio_id")))
	holdings, ok := runQuery(deps, w, r, sql, decodeHolding)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}

func handleListTransactions(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultTransactionLimit)
	if !ok {
		return
	}
	var where []string
	if clientID := r.URL.Query().Get("client_id"); clientID != "" {
		where = append(where, "client_id = "+sqltext.Quote(clientID))
	}
	if portfolioID := r.URL.Query().Get("portfolio_id"); portfolioID != "" {
		where = append(where, "portfolio_id = "+sqltext.Quote(portfolioID))
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ") + "\n"
	}

	sql := fmt.Sprintf(`SELECT transaction_id, account_id, product_id, transaction_type, quantity, amount, transaction_date
FROM transactions
%sORDER BY transaction_date DESC
LIMIT %d`, whereSQL, limit)
	transactions, ok := runQuery(deps, w, r, sql, decodeTransaction)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

func handleListContent(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultContentLimit)
	if !ok {
		return
	}
	themeFilter := ""
	if theme := r.URL.Query().Get("theme"); theme != "" {
		themeFilter = "WHERE theme = " + sqltext.Quote(theme) + "\n"
	}
	sql := fmt.Sprintf(`SELECT content_id, title, content_type, theme, creation_date
FROM thought_leadership_content
%sORDER BY creation_date DESC
LIMIT %d`, themeFilter, limit)
	content, ok := runQuery(deps, w, r, sql, decodeContent)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func handleGetContent(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sql := fmt.Sprintf(`SELECT content_id, title, content_type, theme, creation_date
FROM thought_leadership_content
WHERE content_id = %s
LIMIT 1`, sqltext.Quote(r.PathValue("content_id")))
	content, ok := runQuery(deps, w, r, sql, decodeContent)
	if !ok {
		return
	}
	if len(content) == 0 {
		writeError(r.Context(), w, http.StatusNotFound, "CONTENT_NOT_FOUND", "content not found", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, content[0])
}

// runQuery executes sql and decodes every row. On failure the error response
// has already been written and ok is false.
func runQuery[T any](deps Dependencies, w http.ResponseWriter, r *http.Request, sql string, decode func(*rowDecoder) T) ([]T, bool) {
	if deps.Query == nil {
		writeNotConfigured(w, r, "QUERY_NOT_CONFIGURED", "query client is not configured")
		return nil, false
	}
	rows, err := deps.Query.Execute(r.Context(), sql)
	if err != nil {
		writeQueryError(w, r, err)
		return nil, false
	}
	items, err := decodeRows(rows, decode)
	if err != nil {
		writeQueryError(w, r, err)
		return nil, false
	}
	return items, true
}

func parseLimit(w http.ResponseWriter, r *http.Request, fallback int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, true
	}
	requested, err := strconv.Atoi(raw)
	if err != nil || requested < 1 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, map[string]any{"limit": raw})
		return 0, false
	}
	return sqltext.Limit(requested, fallback, maxListLimit), true
}
