// Package sqltext builds the literal parts of SQL text assembled by request
// handlers.
package sqltext

import "strings"

// Quote returns value as a single-quoted SQL string literal, doubling any
// embedded single quotes.
func Quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// QuoteList quotes each value and joins them with commas for an IN list.
func QuoteList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, Quote(value))
	}
	return strings.Join(quoted, ", ")
}

// Limit clamps requested into [1, ceiling], using fallback when requested is
// not positive.
func Limit(requested, fallback, ceiling int) int {
	if requested <= 0 {
		requested = fallback
	}
	if requested > ceiling {
		return ceiling
	}
	if requested < 1 {
		return 1
	}
	return requested
}

// IsReadOnly reports whether statement starts with SELECT or WITH and holds a
// single statement.
func IsReadOnly(statement string) bool {
	trimmed := strings.TrimSpace(statement)
	trimmed = strings.TrimRight(trimmed, "; \t\r\n")
	if trimmed == "" || strings.Contains(trimmed, ";") {
		return false
	}
	fields := strings.Fields(trimmed)
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
		return true
	default:
		return false
	}
}

// MaskLiterals replaces the body of every single-quoted string literal in
// statement with "?". Doubled quotes inside a literal stay part of it.
func MaskLiterals(statement string) string {
	var b strings.Builder
	b.Grow(len(statement))
	inLiteral := false
	for i := 0; i < len(statement); i++ {
		c := statement[i]
		switch {
		case !inLiteral && c == '\'':
			b.WriteString("'?")
			inLiteral = true
		case inLiteral && c == '\'':
			if i+1 < len(statement) && statement[i+1] == '\'' {
				i++
				continue
			}
			b.WriteByte('\'')
			inLiteral = false
		case !inLiteral:
			b.WriteByte(c)
		}
	}
	return b.String()
}
