package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/casedesk/casedesk/internal/config"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	options := &slog.HandlerOptions{Level: cfg.Observability.LogLevel}
	var handler slog.Handler = slog.NewTextHandler(writer, options)
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, options)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

// WithTrace returns logger annotated with the trace id carried by ctx, if any.
func WithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return logger.With(slog.String("trace_id", traceID))
	}
	return logger
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
