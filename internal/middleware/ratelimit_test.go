package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

var loginTest = Limit{Name: "login", Max: 3, Window: time.Minute}

func TestCheckRateLimit_Bypass(t *testing.T) {
	for _, env := range []string{"test", "development", "stress"} {
		t.Run(env, func(t *testing.T) {
			t.Setenv("APP_ENV", env)
			d, err := CheckRateLimit(context.Background(), nil, ApplyLimit, "user:1")
			assert.NoError(t, err)
			assert.True(t, d.Allowed)
		})
	}
}

func TestCheckRateLimit_NilRedis(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	d, err := CheckRateLimit(context.Background(), nil, ApplyLimit, "user:1")
	assert.ErrorIs(t, err, errNoRedis)
	assert.False(t, d.Allowed)
}

func TestCheckRateLimit_CountsWithinWindow(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newMiniRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := CheckRateLimit(ctx, rdb, loginTest, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}
	d, err := CheckRateLimit(ctx, rdb, loginTest, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Greater(t, d.ResetIn, time.Duration(0))

	assert.Greater(t, mr.TTL("rl:login:ip:1.2.3.4"), time.Duration(0))

	// Other subjects have their own budget.
	d, err = CheckRateLimit(ctx, rdb, loginTest, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	mr.FastForward(2 * time.Minute)
	d, err = CheckRateLimit(ctx, rdb, loginTest, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCheckRateLimit_RepairsMissingExpiry(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newMiniRedis(t)
	require.NoError(t, mr.Set("rl:login:ip:9.9.9.9", "1"))

	_, err := CheckRateLimit(context.Background(), rdb, loginTest, "ip:9.9.9.9")
	require.NoError(t, err)
	assert.Greater(t, mr.TTL("rl:login:ip:9.9.9.9"), time.Duration(0))
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newMiniRedis(t)

	app := fiber.New()
	app.Post("/apply", RateLimit(rdb, Limit{Name: "apply", Max: 1, Window: time.Minute}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	app.Post("/open", RateLimit(rdb, Limit{Name: "open", Max: 1, Window: time.Minute}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/checkout", RateLimit(rdb, CheckoutLimit), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/apply", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp, err = app.Test(httptest.NewRequest("POST", "/apply", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	mr.Close()
	resp, err = app.Test(httptest.NewRequest("POST", "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/checkout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
