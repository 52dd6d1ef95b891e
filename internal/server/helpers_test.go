package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scholarhub/internal/service"
	"scholarhub/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamLabel(t *testing.T) {
	for param, want := range map[string]string{
		"id":               "ID",
		"userId":           "user ID",
		"scholarshipId":    "scholarship ID",
		"paymentSessionId": "payment session ID",
		"trackingId":       "tracking ID",
		"something":        "something",
	} {
		assert.Equal(t, want, paramLabel(param), param)
	}
}

func TestPageFrom(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := pageFrom(c, 20)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})

	tests := []struct {
		query      string
		wantLimit  float64
		wantOffset float64
	}{
		{"", 20, 0},
		{"?limit=10&offset=30", 10, 30},
		{"?page=3&limit=10", 10, 20},
		{"?page=2", 20, 20},
		{"?limit=500", 100, 0},
		{"?limit=-1&offset=-5", 20, 0},
		{"?page=2&offset=7", 20, 7},
	}
	for _, tt := range tests {
		t.Run("q"+tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			var body map[string]float64
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantLimit, body["limit"])
			assert.Equal(t, tt.wantOffset, body["offset"])
		})
	}
}

func TestIDParam(t *testing.T) {
	tests := []struct {
		param, value string
		wantStatus   int
		wantMsg      string
	}{
		{"id", "42", http.StatusOK, ""},
		{"id", "abc", http.StatusBadRequest, "Invalid ID"},
		{"id", "0", http.StatusBadRequest, "Invalid ID"},
		{"userId", "abc", http.StatusBadRequest, "Invalid user ID"},
		{"scholarshipId", "-3", http.StatusBadRequest, "Invalid scholarship ID"},
	}
	for _, tt := range tests {
		t.Run(tt.param+"="+tt.value, func(t *testing.T) {
			app := fiber.New()
			app.Get("/items/:"+tt.param, func(c *fiber.Ctx) error {
				id, ok := idParam(c, tt.param)
				if !ok {
					return nil
				}
				return c.JSON(fiber.Map{"id": id})
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/"+tt.value, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantMsg != "" {
				var body map[string]string
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.wantMsg, body["error"])
			}
		})
	}
}

func TestBindJSON_Malformed(t *testing.T) {
	app := fiber.New()
	app.Post("/items", func(c *fiber.Ctx) error {
		var req struct {
			Name string `json:"name"`
		}
		if !bindJSON(c, &req) {
			return nil
		}
		return c.JSON(req)
	})

	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader("{"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Invalid request body", body["error"])
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

// --- callerFrom ---

func callerWith(role workflow.Role) service.Caller {
	return service.Caller{UserID: 1, Role: role, Email: string(role) + "@example.com"}
}

func TestCallerFrom(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if c.Query("set") != "" {
			c.Locals(localCaller, callerWith(workflow.RoleModerator))
		}
		caller, ok := callerFrom(c)
		if !ok {
			return unauthenticated(c)
		}
		return c.JSON(fiber.Map{"role": caller.Role})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/?set=1", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "moderator", body["role"])
}
