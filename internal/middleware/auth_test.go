package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-123"

func TestIssueAndParseToken(t *testing.T) {
	t.Parallel()

	signed, issued, err := IssueToken(testSecret, 42, "moderator", time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	claims, err := ParseToken(testSecret, signed)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, "moderator", claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestParseTokenRejects(t *testing.T) {
	t.Parallel()

	expired, _, err := IssueToken(testSecret, 1, "student", time.Now().Add(-2*TokenTTL))
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    "someone-else",
		Audience:  jwt.ClaimStrings{TokenAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	foreignSigned, err := foreign.SignedString([]byte(testSecret))
	require.NoError(t, err)

	good, _, err := IssueToken(testSecret, 1, "student", time.Now())
	require.NoError(t, err)

	tests := map[string]struct {
		secret string
		token  string
	}{
		"expired":      {testSecret, expired},
		"wrong issuer": {testSecret, foreignSigned},
		"wrong secret": {"another-secret-another-secret-123", good},
		"garbage":      {testSecret, "not.a.token"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(tt.secret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(BearerToken(c)) })

	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"bearer  xyz ": "xyz",
		"Basic abc":    "",
		"":             "",
	} {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		buf := make([]byte, 16)
		n, _ := resp.Body.Read(buf)
		assert.Equal(t, want, string(buf[:n]), header)
	}
}
