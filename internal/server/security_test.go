package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"scholarhub/internal/middleware"
	"scholarhub/internal/models"
	"scholarhub/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityMiddleware(t *testing.T) {
	app := fiber.New()

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	t.Run("Security Headers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
		assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	})

	t.Run("Structured Logging", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

// Every staff and admin surface must refuse students, whatever the body.
func TestRoleProtectedRoutes(t *testing.T) {
	env := newTestEnv(t, "")
	_, studentToken := env.user(t, "student@example.com", workflow.RoleStudent)
	_, modToken := env.user(t, "mod@example.com", workflow.RoleModerator)

	studentForbidden := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/scholarship"},
		{http.MethodPatch, "/api/managesholarship/1"},
		{http.MethodDelete, "/api/managescholarshipdelete/1"},
		{http.MethodPatch, "/api/rolemoderator/1"},
		{http.MethodPatch, "/api/application/feedback/1"},
		{http.MethodGet, "/api/allapplication"},
		{http.MethodGet, "/api/review/role/modaretor"},
		{http.MethodDelete, "/api/role/modaretor/1"},
		{http.MethodGet, "/api/users"},
		{http.MethodPatch, "/api/users/1"},
		{http.MethodDelete, "/api/users/1"},
		{http.MethodGet, "/api/admin/stats"},
		{http.MethodGet, "/api/admin/feature-flags"},
		{http.MethodGet, "/api/metrics/dashboard"},
	}
	for _, r := range studentForbidden {
		t.Run("student "+r.method+" "+r.path, func(t *testing.T) {
			status, body := env.do(t, r.method, r.path, studentToken, fiber.Map{})
			assert.Equal(t, http.StatusForbidden, status)
			assert.Equal(t, models.CodeForbidden, errorCode(t, body))
		})
	}

	moderatorForbidden := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/users"},
		{http.MethodPatch, "/api/users/1"},
		{http.MethodGet, "/api/admin/stats"},
		{http.MethodPost, "/api/scholarship"},
		{http.MethodPatch, "/api/managesholarship/1"},
		{http.MethodDelete, "/api/managescholarshipdelete/1"},
	}
	for _, r := range moderatorForbidden {
		t.Run("moderator "+r.method+" "+r.path, func(t *testing.T) {
			status, _ := env.do(t, r.method, r.path, modToken, fiber.Map{})
			assert.Equal(t, http.StatusForbidden, status)
		})
	}

	t.Run("anonymous", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/api/application", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, models.CodeUnauthorized, errorCode(t, body))
	})
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	env := newTestEnv(t, "")
	status, body := env.do(t, http.MethodGet, "/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	resp := decodeJSON[models.ErrorResponse](t, body)
	assert.Equal(t, models.CodeNotFound, resp.Code)
	assert.Equal(t, "Route /does-not-exist not found", resp.Error)

	// Unknown paths under /api sit behind authentication.
	status, _ = env.do(t, http.MethodGet, "/api/does-not-exist", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
