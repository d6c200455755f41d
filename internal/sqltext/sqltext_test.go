package sqltext

import "testing"

func TestQuoteDoublesSingleQuotes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "C0001", want: "'C0001'"},
		{in: "O'Brien", want: "'O''Brien'"},
		{in: "x' OR '1'='1", want: "'x'' OR ''1''=''1'"},
		{in: "", want: "''"},
	}
	for _, tc := range cases {
		if got := Quote(tc.in); got != tc.want {
			t.Fatalf("Quote(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestQuoteList(t *testing.T) {
	if got := QuoteList([]string{"a", "b'c"}); got != "'a', 'b''c'" {
		t.Fatalf("QuoteList() = %q", got)
	}
	if got := QuoteList(nil); got != "" {
		t.Fatalf("QuoteList(nil) = %q", got)
	}
}

func TestLimit(t *testing.T) {
	cases := []struct {
		requested, fallback, max, want int
	}{
		{requested: 0, fallback: 100, max: 1000, want: 100},
		{requested: -5, fallback: 100, max: 1000, want: 100},
		{requested: 50, fallback: 100, max: 1000, want: 50},
		{requested: 5000, fallback: 100, max: 1000, want: 1000},
		{requested: 0, fallback: 0, max: 10, want: 1},
	}
	for _, tc := range cases {
		if got := Limit(tc.requested, tc.fallback, tc.max); got != tc.want {
			t.Fatalf("Limit(%d, %d, %d) = %d, want %d", tc.requested, tc.fallback, tc.max, got, tc.want)
		}
	}
}

func TestIsReadOnly(t *testing.T) {
	cases := []struct {
		statement string
		want      bool
	}{
		{statement: "SELECT 1", want: true},
		{statement: "  with t as (select 1) select * from t;", want: true},
		{statement: "DROP TABLE clients", want: false},
		{statement: "SELECT 1; DROP TABLE clients", want: false},
		{statement: "", want: false},
		{statement: "insert into x values (1)", want: false},
	}
	for _, tc := range cases {
		if got := IsReadOnly(tc.statement); got != tc.want {
			t.Fatalf("IsReadOnly(%q) = %v, want %v", tc.statement, got, tc.want)
		}
	}
}

func TestMaskLiterals(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "SELECT 1", want: "SELECT 1"},
		{in: `SELECT "UserId" FROM role WHERE "Aws User Name" = 'advisor1' AND "user_password" = 'hunter2'`, want: `SELECT "UserId" FROM role WHERE "Aws User Name" = '?' AND "user_password" = '?'`},
		{in: "WHERE last_name = 'O''Brien' LIMIT 5", want: "WHERE last_name = '?' LIMIT 5"},
		{in: "WHERE x = ''", want: "WHERE x = '?'"},
		{in: "WHERE x = 'open", want: "WHERE x = '?"},
	}
	for _, tc := range cases {
		if got := MaskLiterals(tc.in); got != tc.want {
			t.Fatalf("MaskLiterals(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
