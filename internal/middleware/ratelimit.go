package middleware

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Limit is a fixed-window request budget for one route family.
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
	// FailClosed answers 503 while Redis is unreachable instead of letting
	// the request through.
	FailClosed bool
}

// Portal route budgets.
var (
	SignupLimit = Limit{Name: "signup", Max: 5, Window: 10 * time.Minute}
	LoginLimit  = Limit{Name: "login", Max: 10, Window: 5 * time.Minute}
	GoogleLimit = Limit{Name: "google_login", Max: 10, Window: 5 * time.Minute}
	SearchLimit = Limit{Name: "search", Max: 60, Window: time.Minute}
	ApplyLimit  = Limit{Name: "apply", Max: 10, Window: time.Minute}
	UploadLimit = Limit{Name: "upload", Max: 20, Window: time.Minute}
	// Checkout opens gateway sessions, so it stays shut without a counter.
	CheckoutLimit = Limit{Name: "checkout", Max: 10, Window: time.Minute, FailClosed: true}
)

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

var errNoRedis = errors.New("rate limit store not configured")

// Local and load-test environments are never limited.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

// CheckRateLimit counts one request by subject against l.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, l Limit, subject string) (Decision, error) {
	if rateLimitBypassed() {
		return Decision{Allowed: true, Remaining: l.Max, ResetIn: l.Window}, nil
	}
	if rdb == nil {
		return Decision{}, errNoRedis
	}

	key := "rl:" + l.Name + ":" + subject
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	}); err != nil {
		return Decision{}, err
	}

	count := incr.Val()
	reset := ttl.Val()
	if count == 1 || reset < 0 {
		if err := rdb.PExpire(ctx, key, l.Window).Err(); err != nil {
			return Decision{}, err
		}
		reset = l.Window
	}

	remaining := l.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: count <= int64(l.Max), Remaining: remaining, ResetIn: reset}, nil
}

// subjectOf keys authenticated callers by user and everyone else by IP.
func subjectOf(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(uint); ok {
		return "user:" + strconv.FormatUint(uint64(uid), 10)
	}
	return "ip:" + c.IP()
}

// RateLimit enforces l on the route it guards.
func RateLimit(rdb *redis.Client, l Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := CheckRateLimit(c.UserContext(), rdb, l, subjectOf(c))
		if err != nil {
			if !l.FailClosed {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
				slog.String("limit", l.Name), slog.String("error", err.Error()))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "rate limit unavailable",
				"code":  "NETWORK_ERROR",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(l.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int(d.ResetIn.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
				"code":  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
