package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scholarhub/internal/config"
	"scholarhub/internal/middleware"
	"scholarhub/internal/models"
	"scholarhub/internal/payment"
	"scholarhub/internal/testutil"
	"scholarhub/internal/workflow"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "server-test-secret-at-least-32-bytes!"

// testEnv is a full server on in-memory SQLite and miniredis.
type testEnv struct {
	srv     *Server
	app     *fiber.App
	db      *gorm.DB
	mr      *miniredis.Miniredis
	gateway *payment.Fake
}

func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	rdb, mr := testutil.NewTestRedis(t)
	gateway := payment.NewFake("server-key")

	cfg := &config.Config{
		JWTSecret:            testJWTSecret,
		Env:                  "test",
		AllowedOrigins:       "http://localhost:5173",
		FeatureFlags:         flags,
		ClientURL:            "http://localhost:5173",
		PaymentCurrency:      "USD",
		ImageUploadDir:       t.TempDir(),
		ImageMaxUploadSizeMB: 2,
		InFlightTTL:          5 * time.Second,
	}
	srv := NewServerWithGateway(cfg, db, rdb, gateway)
	app := NewApp()
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)

	return &testEnv{srv: srv, app: app, db: db, mr: mr, gateway: gateway}
}

func (e *testEnv) user(t *testing.T, email string, role workflow.Role) (*models.User, string) {
	t.Helper()
	u := testutil.CreateUser(t, e.db, email, role)
	token, _, err := middleware.IssueToken(testJWTSecret, u.ID, string(role), time.Now())
	require.NoError(t, err)
	return u, token
}

// do sends a JSON request and returns the status and raw body.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.([]byte)
		if !ok {
			var err error
			raw, err = json.Marshal(body)
			require.NoError(t, err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decodeJSON[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	return decodeJSON[models.ErrorResponse](t, body).Code
}

func validApplyBody(scholarshipID uint) fiber.Map {
	return fiber.Map{
		"scholarshipId": scholarshipID,
		"phone":         "+1 555 0100",
		"address":       "12 Test Street",
		"gender":        "female",
		"degree":        models.DegreeMasters,
		"sscResult":     "5.00",
		"hscResult":     "4.80",
	}
}
