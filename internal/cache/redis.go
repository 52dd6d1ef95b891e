// Package cache holds the shared Redis client and the cache-aside helpers
// the catalogue reads go through.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"scholarhub/internal/observability"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

var shared atomic.Pointer[redis.Client]

// errorCounter feeds redis_errors_total. A cache miss is not an error.
type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countError(cmd.Name(), err)
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countError("pipeline", err)
		return err
	}
}

func countError(op string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrors.WithLabelValues(op).Inc()
	}
}

// optionsFor accepts host:port or a redis:// / rediss:// URL.
func optionsFor(addr string) (*redis.Options, error) {
	if !strings.Contains(addr, "://") {
		return &redis.Options{Addr: addr}, nil
	}
	return redis.ParseURL(addr)
}

// NewClient builds an instrumented client without contacting the server.
func NewClient(addr string) (*redis.Client, error) {
	opts, err := optionsFor(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)
	c.AddHook(errorCounter{})
	return c, nil
}

// Connect builds a client and pings it.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	c, err := NewClient(addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// InitRedis sets the shared client. Without Redis the portal still serves:
// reads go uncached, locks and presence stay process-local.
func InitRedis(addr string) {
	c, err := Connect(context.Background(), addr)
	if err != nil {
		slog.Warn("redis unavailable, continuing without it", slog.String("addr", addr), slog.String("error", err.Error()))
		SetClient(nil)
		return
	}
	slog.Info("redis connected", slog.String("addr", c.Options().Addr))
	SetClient(c)
}

// SetClient replaces the shared client. Tests point it at miniredis.
func SetClient(c *redis.Client) { shared.Store(c) }

// GetClient returns the shared client, nil when Redis is unavailable.
func GetClient() *redis.Client { return shared.Load() }
