package observability

import (
	"context"
	"log/slog"
)

// Audit logs a session lifecycle event. Credentials must never be passed as
// attributes.
func Audit(ctx context.Context, logger *slog.Logger, event string, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	base := []any{"event", event}
	base = append(base, attrs...)
	logger.InfoContext(ctx, "audit", base...)
}
