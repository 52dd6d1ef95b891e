package server

import (
	"net/http"
	"testing"

	"scholarhub/internal/middleware"
	"scholarhub/internal/models"
	"scholarhub/internal/service"
	"scholarhub/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupLoginLogout(t *testing.T) {
	env := newTestEnv(t, "")

	status, body := env.do(t, http.MethodPost, "/api/auth/signup", "", service.SignupInput{
		Name:     "Ada Lovelace",
		Email:    "Ada@Example.com",
		Password: "Engine!Notes1",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	signup := decodeJSON[service.Session](t, body)
	require.NotEmpty(t, signup.Token)
	assert.Equal(t, "ada@example.com", signup.User.Email)
	assert.Equal(t, workflow.RoleStudent, signup.User.Role)
	assert.NotContains(t, string(body), "Engine!Notes1")

	t.Run("duplicate email conflicts", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/api/auth/signup", "", service.SignupInput{
			Name: "Ada", Email: "ada@example.com", Password: "Engine!Notes1",
		})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, models.CodeConflict, errorCode(t, body))
	})

	t.Run("wrong password", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/auth/login", "", service.LoginInput{
			Email: "ada@example.com", Password: "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	status, body = env.do(t, http.MethodPost, "/api/auth/login", "", service.LoginInput{
		Email: "ada@example.com", Password: "Engine!Notes1",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	login := decodeJSON[service.Session](t, body)

	status, _ = env.do(t, http.MethodGet, "/api/users/me", login.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodPost, "/api/auth/logout", login.Token, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "Logged out", decodeJSON[map[string]string](t, body)["message"])

	claims, err := middleware.ParseToken(testJWTSecret, login.Token)
	require.NoError(t, err)
	assert.True(t, env.mr.Exists(middleware.BlacklistKey(claims.ID)))

	status, body = env.do(t, http.MethodGet, "/api/users/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.CodeUnauthorized, errorCode(t, body))

	// The signup token is a different session and still works.
	status, _ = env.do(t, http.MethodGet, "/api/users/me", signup.Token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name string
		body any
	}{
		{"weak password", service.SignupInput{Name: "Bob", Email: "bob@example.com", Password: "password"}},
		{"bad email", service.SignupInput{Name: "Bob", Email: "not-an-email", Password: "Engine!Notes1"}},
		{"missing name", service.SignupInput{Email: "bob@example.com", Password: "Engine!Notes1"}},
		{"malformed json", []byte(`{"email":`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/api/auth/signup", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, status, string(body))
			assert.Equal(t, models.CodeValidation, errorCode(t, body))
		})
	}
}

func TestSignupCannotChooseRole(t *testing.T) {
	env := newTestEnv(t, "")

	status, body := env.do(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"name":     "Mallory",
		"email":    "mallory@example.com",
		"password": "Engine!Notes1",
		"role":     "admin",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Equal(t, workflow.RoleStudent, decodeJSON[service.Session](t, body).User.Role)
}

func TestGoogleLogin(t *testing.T) {
	t.Run("disabled by flag", func(t *testing.T) {
		env := newTestEnv(t, "google_login=false")
		status, _ := env.do(t, http.MethodPost, "/api/auth/google", "", fiber.Map{"idToken": "abc"})
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("no client id configured", func(t *testing.T) {
		env := newTestEnv(t, "")
		status, body := env.do(t, http.MethodPost, "/api/auth/google", "", fiber.Map{"idToken": "abc"})
		assert.Equal(t, http.StatusUnauthorized, status, string(body))
	})

	t.Run("missing token", func(t *testing.T) {
		env := newTestEnv(t, "")
		status, _ := env.do(t, http.MethodPost, "/api/auth/google", "", fiber.Map{})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}
