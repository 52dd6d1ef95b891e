// Package observability provides domain logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
)

// TransitionLog is what gets recorded when an application changes state.
type TransitionLog struct {
	ApplicationID uint
	TrackingID    string
	Action        string
	From          string
	To            string
	ActorID       uint
}

// LogTransition writes one structured line per state change. It goes through
// slog.Default, which the middleware package wraps with request context.
func LogTransition(ctx context.Context, t TransitionLog) {
	slog.InfoContext(ctx, "application transition",
		slog.Uint64("application_id", uint64(t.ApplicationID)),
		slog.String("tracking_id", t.TrackingID),
		slog.String("action", t.Action),
		slog.String("from", t.From),
		slog.String("to", t.To),
		slog.Uint64("actor_id", uint64(t.ActorID)),
	)
}

// LogAsyncError records a failure in work that has no caller to return to,
// such as a notification publish after commit.
func LogAsyncError(ctx context.Context, operation string, err error, attrs ...any) {
	args := append([]any{
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	}, attrs...)
	slog.ErrorContext(ctx, "async operation failed", args...)
}
