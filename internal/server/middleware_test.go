package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"scholarhub/internal/config"
	"scholarhub/internal/middleware"
	"scholarhub/internal/models"
	"scholarhub/internal/repository"
	"scholarhub/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserRepository mocks repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByGoogleSub(ctx context.Context, sub string) (*models.User, error) {
	args := m.Called(ctx, sub)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id uint, role workflow.Role) error {
	return m.Called(ctx, id, role).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, filter repository.UserFilter) ([]models.User, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) CountByRole(ctx context.Context) (map[workflow.Role]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[workflow.Role]int64), args.Error(1)
}

const authTestSecret = "test-secret-key-12345678901234567890123456789012"

func signClaims(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(authTestSecret))
	require.NoError(t, err)
	return signed
}

// claimsFor returns valid claims for userID; tweak can spoil them.
func claimsFor(userID uint, tweak func(jwt.MapClaims)) jwt.MapClaims {
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": middleware.TokenIssuer,
		"aud": middleware.TokenAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
		"jti": "test-jti-valid-length",
	}
	if tweak != nil {
		tweak(claims)
	}
	return claims
}

func TestServer_AuthRequired(t *testing.T) {
	users := new(MockUserRepository)
	users.On("GetByID", mock.Anything, uint(123)).
		Return(&models.User{ID: 123, Name: "Ada", Email: "ada@example.com", Role: workflow.RoleStudent}, nil)
	users.On("GetByID", mock.Anything, uint(404)).
		Return(nil, models.NewNotFoundError("User", 404))

	s := &Server{config: &config.Config{JWTSecret: authTestSecret}, userRepo: users}
	app := fiber.New()
	app.Get("/protected", s.AuthRequired(), func(c *fiber.Ctx) error {
		caller, _ := callerFrom(c)
		return c.JSON(fiber.Map{"userID": c.Locals(localUserID), "role": caller.Role})
	})

	valid := signClaims(t, claimsFor(123, nil))
	bearer := func(tweak func(jwt.MapClaims)) string {
		return "Bearer " + signClaims(t, claimsFor(123, tweak))
	}

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{name: "valid token", header: "Bearer " + valid, want: http.StatusOK},
		{name: "query token ignored outside websocket", query: valid, want: http.StatusUnauthorized},
		{name: "expired", header: bearer(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }), want: http.StatusUnauthorized},
		{name: "foreign issuer", header: bearer(func(c jwt.MapClaims) { c["iss"] = "wrong-issuer" }), want: http.StatusUnauthorized},
		{name: "foreign audience", header: bearer(func(c jwt.MapClaims) { c["aud"] = "wrong-audience" }), want: http.StatusUnauthorized},
		{name: "numeric subject", header: bearer(func(c jwt.MapClaims) { c["sub"] = 123 }), want: http.StatusUnauthorized},
		{name: "deleted account", header: "Bearer " + signClaims(t, claimsFor(404, nil)), want: http.StatusUnauthorized},
		{name: "no credentials", want: http.StatusUnauthorized},
		{name: "bearer without space", header: "BearerTokenOnly", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/protected"
			if tt.query != "" {
				path += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.want, resp.StatusCode)

			if tt.want == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, float64(123), body["userID"])
				assert.Equal(t, "student", body["role"])
			}
		})
	}
	users.AssertNotCalled(t, "GetByID", mock.Anything, uint(0))
}

func TestServer_AuthRequired_RoleComesFromStorage(t *testing.T) {
	users := new(MockUserRepository)
	// Token says admin, storage says student.
	users.On("GetByID", mock.Anything, uint(7)).
		Return(&models.User{ID: 7, Email: "demoted@example.com", Role: workflow.RoleStudent}, nil)

	s := &Server{config: &config.Config{JWTSecret: authTestSecret}, userRepo: users}
	app := fiber.New()
	app.Get("/admin", s.AuthRequired(), s.RolesRequired(workflow.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	token, _, err := middleware.IssueToken(authTestSecret, 7, string(workflow.RoleAdmin), time.Now())
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
	users.AssertExpectations(t)
}

func TestServer_RolesRequired(t *testing.T) {
	s := &Server{}
	tests := []struct {
		name   string
		caller any
		roles  []workflow.Role
		want   int
	}{
		{"no caller", nil, []workflow.Role{workflow.RoleAdmin}, http.StatusUnauthorized},
		{"student to admin route", callerWith(workflow.RoleStudent), []workflow.Role{workflow.RoleAdmin}, http.StatusForbidden},
		{"moderator to staff route", callerWith(workflow.RoleModerator), []workflow.Role{workflow.RoleModerator, workflow.RoleAdmin}, http.StatusOK},
		{"admin to moderator only route", callerWith(workflow.RoleAdmin), []workflow.Role{workflow.RoleModerator}, http.StatusForbidden},
		{"unknown role", callerWith(workflow.Role("owner")), []workflow.Role{workflow.RoleAdmin}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				if tt.caller != nil {
					c.Locals(localCaller, tt.caller)
				}
				return c.Next()
			}, s.RolesRequired(tt.roles...), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			assert.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}
}
