package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestCtxHandler_AddsContextValues(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, "production", "info"))

	ctx := WithUser(context.Background(), 7, "moderator")
	ctx = WithTrackingID(ctx, "TRK-1")
	log.InfoContext(ctx, "hello")

	rec := decodeRecord(t, &buf)
	assert.EqualValues(t, 7, rec["user_id"])
	assert.Equal(t, "moderator", rec["role"])
	assert.Equal(t, "TRK-1", rec["tracking_id"])
	assert.NotContains(t, rec, "request_id")
}

func TestCtxHandler_CallSiteAttrWins(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, "production", "info"))

	log.InfoContext(WithTrackingID(context.Background(), "from-ctx"), "hello", slog.String("tracking_id", "explicit"))

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"tracking_id"`)))
	assert.Equal(t, "explicit", decodeRecord(t, &buf)["tracking_id"])
}

func TestNewHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, "production", "WARN"))
	log.Info("dropped")
	assert.Zero(t, buf.Len())
	log.Warn("kept")
	assert.NotZero(t, buf.Len())

	buf.Reset()
	slog.New(newHandler(&buf, "development", "nonsense")).Debug("dropped")
	assert.Zero(t, buf.Len(), "unknown levels fall back to info")
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		status int
		err    error
		want   slog.Level
	}{
		{fiber.StatusOK, nil, slog.LevelInfo},
		{fiber.StatusConflict, nil, slog.LevelWarn},
		{fiber.StatusBadGateway, nil, slog.LevelError},
		{fiber.StatusOK, errors.New("boom"), slog.LevelError},
	}
	for _, tc := range cases {
		got, _ := levelFor(tc.status, tc.err)
		assert.Equal(t, tc.want, got, "status %d", tc.status)
	}
}

func TestContextMiddleware_CopiesLocals(t *testing.T) {
	app := fiber.New()
	app.Use(requestid.New())
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(3))
		return c.Next()
	})
	app.Use(ContextMiddleware())

	var got context.Context
	app.Get("/", func(c *fiber.Ctx) error {
		got = c.UserContext()
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.NotNil(t, got)
	assert.Equal(t, uint(3), got.Value(UserIDKey))
	assert.Equal(t, resp.Header.Get(fiber.HeaderXRequestID), got.Value(RequestIDKey))
	assert.Nil(t, got.Value(TraceIDKey))
}
