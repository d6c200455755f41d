package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/genbi/genbi/internal/query"
)

func TestLoginReturnsUserAndRole(t *testing.T) {
	querier := &fakeQuerier{respond: func(string) ([]query.Row, error) {
		return []query.Row{textRow("UserId", "A001", "Role", "advisor")}, nil
	}}
	h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})

	rr := serve(h, http.MethodPost, "/v1/login", `{"username":"advisor1","password":"advisor1-pass"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["user_id"] != "A001" || body["role"] != "advisor" {
		t.Fatalf("body = %#v", body)
	}
	want := `SELECT "UserId", "Role" FROM role WHERE "Aws User Name" = 'advisor1' AND "user_password" = 'advisor1-pass' LIMIT 1`
	if querier.sqls[0] != want {
		t.Fatalf("sql = %q", querier.sqls[0])
	}
}

func TestLoginQuotesCredentialLiterals(t *testing.T) {
	querier := &fakeQuerier{}
	h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})

	rr := serve(h, http.MethodPost, "/v1/login", `{"username":"o'brien","password":"x' OR '1'='1"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(querier.sqls[0], `'o''brien'`) || !strings.Contains(querier.sqls[0], `'x'' OR ''1''=''1'`) {
		t.Fatalf("sql = %q", querier.sqls[0])
	}
}

func TestLoginRejectsMissingCredentials(t *testing.T) {
	querier := &fakeQuerier{}
	h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})

	for _, body := range []string{`{"username":"advisor1"}`, `{"username":"a","password":"b","extra":1}`, `not json`} {
		rr := serve(h, http.MethodPost, "/v1/login", body, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", body, rr.Code)
		}
	}
	if len(querier.sqls) != 0 {
		t.Fatalf("queries = %v", querier.sqls)
	}
}

func TestListAdvisorsKeepsNullEmail(t *testing.T) {
	querier := &fakeQuerier{respond: func(string) ([]query.Row, error) {
		return []query.Row{
			textRow("advisor_id", "A001", "first_name", "Ada", "last_name", "Lovelace", "email", "ada@example.com"),
			{"advisor_id": sp("A002"), "first_name": sp("Alan"), "last_name": sp("Turing"), "email": nil},
		}, nil
	}}
	h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})

	rr := serve(h, http.MethodGet, "/v1/advisors", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); !strings.Contains(got, `"email":null`) {
		t.Fatalf("body = %s", got)
	}
}

func TestAdvisorClientsFiltersByAdvisor(t *testing.T) {
	querier := &fakeQuerier{respond: func(string) ([]query.Row, error) {
		return []query.Row{textRow("client_id", "C0001", "first_name", "Grace", "last_name", "Hopper", "age", "52")}, nil
	}}
	h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})

	rr := serve(h, http.MethodGet, "/v1/advisors/A001/clients", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(querier.sqls[0], "WHERE a.advisor_id = 'A001'") {
		t.Fatalf("sql = %q", querier.sqls[0])
	}
	if !strings.Contains(rr.Body.String(), `"age":52`) {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestListClientsLimit(t *testing.T) {
	cases := []struct {
		target string
		want   string
	}{
		{target: "/v1/clients", want: "LIMIT 100"},
		{target: "/v1/clients?limit=5", want: "LIMIT 5"},
		{target: "/v1/clients?limit=50000", want: "LIMIT 1000"},
	}
	for _, tc := range cases {
		querier := &fakeQuerier{}
		h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})
		rr := serve(h, http.MethodGet, tc.target, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tc.target, rr.Code)
		}
		if !strings.HasSuffix(querier.sqls[0], tc.want) {
			t.Fatalf("%s: sql = %q, want suffix %q", tc.target, querier.sqls[0], tc.want)
		}
	}
}

func TestListClientsRejectsBadLimit(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Query: &fakeQuerier{}})
	rr := serve(h, http.MethodGet, "/v1/clients?limit=abc", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "INVALID_LIMIT" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestDetailRoutesReturn404WhenEmpty(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Query: &fakeQuerier{}})
	cases := map[string]string{
		"/v1/clients/C9999":    "CLIENT_NOT_FOUND",
		"/v1/portfolios/P9999": "PORTFOLIO_NOT_FOUND",
		"/v1/content/TL9999":   "CONTENT_NOT_FOUND",
	}
	for target, code := range cases {
		rr := serve(h, http.MethodGet, target, "", "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d", target, rr.Code)
		}
		if body := decodeBody(t, rr); body["error_code"] != code {
			t.Fatalf("%s: error_code = %v", target, body["error_code"])
		}
	}
}

func TestPortfolioHoldingsDecodesNumbers(t *testing.T) {
	querier := &fakeQuerier{respond: func(string) ([]query.Row, error) {
		return []query.Row{textRow("product_id", "P001", "shares", "12.5", "market_value", "1500.25", "product_name", "Growth Equity Fund 1")}, nil
	}}
	h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})

	rr := serve(h, http.MethodGet, "/v1/portfolios/C0001-P1/holdings", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"shares":12.5`) || !strings.Contains(rr.Body.String(), `"market_value":1500.25`) {
		t.Fatalf("body = %s", rr.Body.String())
	}
	if !strings.Contains(querier.sqls[0], "WHERE h.portfolio_id = 'C0001-P1'") {
		t.Fatalf("sql = %q", querier.sqls[0])
	}
}

func TestUndecodableValueReturns502(t *testing.T) {
	querier := &fakeQuerier{respond: func(string) ([]query.Row, error) {
		return []query.Row{textRow("product_id", "P001", "shares", "lots", "market_value", "1", "product_name", "x")}, nil
	}}
	h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})

	rr := serve(h, http.MethodGet, "/v1/portfolios/P1/holdings", "", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "RESULT_DECODE_FAILED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestListTransactionsFilters(t *testing.T) {
	cases := []struct {
		target string
		want   []string
		absent string
	}{
		{target: "/v1/transactions", want: []string{"ORDER BY transaction_date DESC", "LIMIT 200"}, absent: "WHERE"},
		{target: "/v1/transactions?client_id=C0001", want: []string{"WHERE client_id = 'C0001'\n"}},
		{target: "/v1/transactions?client_id=C0001&portfolio_id=C0001-P1&limit=10", want: []string{"WHERE client_id = 'C0001' AND portfolio_id = 'C0001-P1'", "LIMIT 10"}},
	}
	for _, tc := range cases {
		querier := &fakeQuerier{}
		h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})
		rr := serve(h, http.MethodGet, tc.target, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tc.target, rr.Code)
		}
		for _, want := range tc.want {
			if !strings.Contains(querier.sqls[0], want) {
				t.Fatalf("%s: sql = %q, want %q", tc.target, querier.sqls[0], want)
			}
		}
		if tc.absent != "" && strings.Contains(querier.sqls[0], tc.absent) {
			t.Fatalf("%s: sql = %q contains %q", tc.target, querier.sqls[0], tc.absent)
		}
	}
}

func TestListContentThemeFilter(t *testing.T) {
	querier := &fakeQuerier{}
	h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})

	rr := serve(h, http.MethodGet, "/v1/content?theme=Tax", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(querier.sqls[0], "WHERE theme = 'Tax'") || !strings.HasSuffix(querier.sqls[0], "LIMIT 100") {
		t.Fatalf("sql = %q", querier.sqls[0])
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestQueryErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "submission", err: &query.SubmissionError{Code: "InvalidRequestException", Err: fmt.Errorf("bad table")}, status: http.StatusBadGateway, code: "QUERY_REJECTED"},
		{name: "execution", err: &query.ExecutionError{ExecutionID: "exec-1", State: query.StateFailed, Reason: "syntax"}, status: http.StatusBadGateway, code: "QUERY_FAILED"},
		{name: "shape", err: &query.ResultShapeError{ExecutionID: "exec-1", Message: "no columns"}, status: http.StatusBadGateway, code: "RESULT_SHAPE_INVALID"},
		{name: "deadline", err: fmt.Errorf("wait: %w", context.DeadlineExceeded), status: http.StatusGatewayTimeout, code: "QUERY_TIMEOUT"},
		{name: "cancelled", err: context.Canceled, status: http.StatusServiceUnavailable, code: "REQUEST_CANCELLED"},
		{name: "other", err: fmt.Errorf("boom"), status: http.StatusInternalServerError, code: "QUERY_ERROR"},
	}
	for _, tc := range cases {
		querier := &fakeQuerier{respond: func(string) ([]query.Row, error) { return nil, tc.err }}
		h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})
		rr := serve(h, http.MethodGet, "/v1/advisors", "", "")
		if rr.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.name, rr.Code, tc.status)
		}
		if body := decodeBody(t, rr); body["error_code"] != tc.code {
			t.Fatalf("%s: error_code = %v, want %s", tc.name, body["error_code"], tc.code)
		}
	}
}

func TestExecutionErrorContextNamesExecution(t *testing.T) {
	querier := &fakeQuerier{respond: func(string) ([]query.Row, error) {
		return nil, &query.ExecutionError{ExecutionID: "exec-7", State: query.StateCancelled, Reason: "user cancelled"}
	}}
	h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})

	rr := serve(h, http.MethodGet, "/v1/content", "", "")
	body := decodeBody(t, rr)
	errContext, ok := body["context"].(map[string]any)
	if !ok {
		t.Fatalf("context = %#v", body["context"])
	}
	if errContext["execution_id"] != "exec-7" || errContext["reason"] != "user cancelled" {
		t.Fatalf("context = %#v", errContext)
	}
}

func TestAdHocQueryRejectsWrites(t *testing.T) {
	querier := &fakeQuerier{}
	h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})

	for _, sql := range []string{"DROP TABLE clients", "SELECT 1; DELETE FROM clients", ""} {
		body := fmt.Sprintf(`{"sql":%q}`, sql)
		rr := serve(h, http.MethodPost, "/v1/query", body, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%q: status = %d", sql, rr.Code)
		}
	}
	if len(querier.sqls) != 0 {
		t.Fatalf("queries = %v", querier.sqls)
	}
}

func TestAdHocQueryReturnsRawRows(t *testing.T) {
	querier := &fakeQuerier{respond: func(string) ([]query.Row, error) {
		return []query.Row{textRow("theme", "Tax"), {"theme": nil}}, nil
	}}
	h := NewHandler(testConfig(t, nil), Dependencies{Query: querier})

	rr := serve(h, http.MethodPost, "/v1/query", `{"sql":"SELECT theme FROM thought_leadership_content"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["row_count"] != float64(2) {
		t.Fatalf("row_count = %v", body["row_count"])
	}
}

func sp(value string) *string {
	return &value
}
