package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/genbi/genbi/internal/config"
	"github.com/genbi/genbi/internal/sqltext"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// MaxSQLPreview bounds the SQL text attached to log lines.
const MaxSQLPreview = 200

const redacted = "[redacted]"

var sensitiveKeys = map[string]struct{}{
	"password":          {},
	"user_password":     {},
	"api_key":           {},
	"secret_access_key": {},
	"session_token":     {},
}

func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Observability.LogLevel, ReplaceAttr: redactSensitive}
	var handler slog.Handler
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	attrs := []any{
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	}
	if cfg.Engine.Backend != "" {
		attrs = append(attrs, slog.String("engine", string(cfg.Engine.Backend)))
	}
	return slog.New(handler).With(attrs...)
}

func redactSensitive(_ []string, attr slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, redacted)
	}
	return attr
}

// SQLPreview masks string literals in statement, collapses whitespace, and
// cuts the result to MaxSQLPreview runes.
func SQLPreview(statement string) string {
	preview := strings.Join(strings.Fields(sqltext.MaskLiterals(statement)), " ")
	if utf8.RuneCountInString(preview) <= MaxSQLPreview {
		return preview
	}
	runes := []rune(preview)
	return string(runes[:MaxSQLPreview]) + "..."
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return ""
	}
	return value
}
