// Package test holds end-to-end scenarios that drive the HTTP API the way
// the browser client does, against in-memory SQLite and miniredis.
package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"scholarhub/internal/config"
	"scholarhub/internal/middleware"
	"scholarhub/internal/models"
	"scholarhub/internal/payment"
	"scholarhub/internal/server"
	"scholarhub/internal/service"
	"scholarhub/internal/testutil"
	"scholarhub/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	testSecret   = "e2e-test-secret-that-is-long-enough!"
	testPassword = "Scholar!Pass2024"
)

var emailSeq atomic.Int64

type portal struct {
	app     *fiber.App
	db      *gorm.DB
	gateway *payment.Fake
}

type authUser struct {
	ID    uint
	Email string
	Token string
}

func newPortal(t *testing.T) *portal {
	t.Helper()

	db := testutil.NewTestDB(t)
	rdb, _ := testutil.NewTestRedis(t)
	gateway := payment.NewFake("e2e-server-key")

	cfg := &config.Config{
		JWTSecret:            testSecret,
		Env:                  "test",
		AllowedOrigins:       "http://localhost:5173",
		ClientURL:            "http://localhost:5173",
		PaymentCurrency:      "USD",
		ImageUploadDir:       t.TempDir(),
		ImageMaxUploadSizeMB: 2,
		InFlightTTL:          5 * time.Second,
	}
	srv := server.NewServerWithGateway(cfg, db, rdb, gateway)
	app := server.NewApp()
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)
	return &portal{app: app, db: db, gateway: gateway}
}

// signup registers a student through the API.
func (p *portal) signup(t *testing.T, prefix string) authUser {
	t.Helper()
	email := fmt.Sprintf("%s_%d@example.com", prefix, emailSeq.Add(1))
	status, body := p.call(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name":     prefix,
		"email":    email,
		"password": testPassword,
	})
	if status != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", email, status, body)
	}
	session := decode[service.Session](t, body)
	return authUser{ID: session.User.ID, Email: email, Token: session.Token}
}

// staff creates a moderator or admin directly; roles are never self-chosen.
func (p *portal) staff(t *testing.T, prefix string, role workflow.Role) authUser {
	t.Helper()
	email := fmt.Sprintf("%s_%d@example.com", prefix, emailSeq.Add(1))
	u := testutil.CreateUser(t, p.db, email, role)
	token, _, err := middleware.IssueToken(testSecret, u.ID, string(role), time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return authUser{ID: u.ID, Email: email, Token: token}
}

func (p *portal) call(t *testing.T, method, path, token string, payload any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := p.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res.StatusCode, body
}

func (p *portal) mustCall(t *testing.T, want int, method, path, token string, payload any) []byte {
	t.Helper()
	status, body := p.call(t, method, path, token, payload)
	if status != want {
		t.Fatalf("%s %s: want %d got %d body %s", method, path, want, status, body)
	}
	return body
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode %T: %v (%s)", out, err, body)
	}
	return out
}

func applyBody(scholarshipID uint) map[string]any {
	return map[string]any{
		"scholarshipId": scholarshipID,
		"phone":         "+44 20 7946 0000",
		"address":       "221B Baker Street",
		"gender":        "other",
		"sscResult":     "4.90",
		"hscResult":     "4.70",
	}
}

// seedListing inserts an open listing without going through the API.
func (p *portal) seedListing(t *testing.T) *models.Scholarship {
	t.Helper()
	return testutil.CreateScholarship(t, p.db, nil)
}
