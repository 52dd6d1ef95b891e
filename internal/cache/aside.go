package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"scholarhub/internal/observability"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// flights collapses concurrent misses on one key into a single fetch.
var flights singleflight.Group

// GetJSON loads key into dest. A miss, or no Redis at all, is (false, nil).
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	c := GetClient()
	if c == nil {
		return false, nil
	}
	raw, err := c.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, json.Unmarshal(raw, dest)
}

// SetJSON stores v under key for ttl. Without Redis it does nothing.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	c := GetClient()
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl).Err()
}

// Aside serves dest from Redis when present. On a miss one caller per key
// runs fetch, which fills dest, and everyone waiting on that key gets a
// copy of the result. Cache failures are logged and never fail the read.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	switch {
	case found && err == nil:
		observability.CacheLookups.WithLabelValues("hit").Inc()
		return nil
	case err != nil:
		observability.CacheLookups.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	default:
		observability.CacheLookups.WithLabelValues("miss").Inc()
	}

	v, err, _ := flights.Do(key, func() (any, error) {
		if err := fetch(); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(dest)
		if err != nil {
			return nil, err
		}
		if c := GetClient(); c != nil {
			if err := c.Set(ctx, key, raw, ttl).Err(); err != nil {
				slog.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
			}
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), dest)
}

// Invalidate drops keys. Errors are logged only.
func Invalidate(ctx context.Context, keys ...string) {
	c := GetClient()
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.Del(ctx, keys...).Err(); err != nil {
		slog.WarnContext(ctx, "cache invalidate failed", slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}
