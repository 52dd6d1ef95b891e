package middleware

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger. It also backs slog.Default.
var Logger *slog.Logger

type contextKey string

const (
	RequestIDKey  contextKey = "request_id"
	UserIDKey     contextKey = "user_id"
	RoleKey       contextKey = "role"
	TraceIDKey    contextKey = "trace_id"
	TrackingIDKey contextKey = "tracking_id"
)

// contextAttrs are copied from the context onto every record that has them.
var contextAttrs = []contextKey{RequestIDKey, UserIDKey, RoleKey, TraceIDKey, TrackingIDKey}

// ctxHandler decorates records with the request-scoped values above. An
// attribute the call site already set wins over the context value.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	set := make(map[string]bool, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		set[a.Key] = true
		return true
	})
	for _, key := range contextAttrs {
		if v := ctx.Value(key); v != nil && !set[string(key)] {
			r.AddAttrs(slog.Any(string(key), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newHandler writes JSON in production and text elsewhere, at LOG_LEVEL.
func newHandler(w io.Writer, env, level string) slog.Handler {
	lvl, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if env == "production" {
		return &ctxHandler{slog.NewJSONHandler(w, opts)}
	}
	return &ctxHandler{slog.NewTextHandler(w, opts)}
}

func init() {
	Logger = slog.New(newHandler(os.Stdout, os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL")))
	slog.SetDefault(Logger)
}

// WithTrackingID tags log records with the application being worked on.
func WithTrackingID(ctx context.Context, trackingID string) context.Context {
	return context.WithValue(ctx, TrackingIDKey, trackingID)
}

// WithUser returns ctx carrying the authenticated user for log records.
func WithUser(ctx context.Context, userID uint, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	if role != "" {
		ctx = context.WithValue(ctx, RoleKey, role)
	}
	return ctx
}

// requestLocals maps fiber locals set earlier in the chain onto context keys.
var requestLocals = map[string]contextKey{
	"requestid": RequestIDKey,
	"userID":    UserIDKey,
	"traceID":   TraceIDKey,
}

// ContextMiddleware moves request-scoped locals into the user context so
// service code logging with that context carries them.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		for local, key := range requestLocals {
			if v := c.Locals(local); v != nil {
				ctx = context.WithValue(ctx, key, v)
			}
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// levelFor picks the record level for a finished request.
func levelFor(status int, err error) (slog.Level, string) {
	switch {
	case err != nil, status >= fiber.StatusInternalServerError:
		return slog.LevelError, "request failed"
	case status >= fiber.StatusBadRequest:
		return slog.LevelWarn, "request rejected"
	default:
		return slog.LevelInfo, "request processed"
	}
}

// StructuredLogger logs one record per request once the handler chain returns.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
			slog.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		level, msg := levelFor(status, err)
		Logger.LogAttrs(c.UserContext(), level, msg, attrs...)
		return err
	}
}
