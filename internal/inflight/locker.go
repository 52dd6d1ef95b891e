// Package inflight guarantees at most one running mutation per key, such as
// one application or one (student, scholarship) apply. Redis holds the lock
// when configured so the guarantee spans API replicas; otherwise a
// process-local table is used.
package inflight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"scholarhub/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrInFlight is returned when another mutation holds the key.
var ErrInFlight = errors.New("inflight: another request for this resource is still in progress")

// DefaultTTL bounds a lock whose holder crashed before releasing it.
const DefaultTTL = 30 * time.Second

// releaseScript deletes the key only if it still holds our token, so a
// holder whose lock already expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive keys.
type Locker struct {
	rdb *redis.Client
	ttl time.Duration

	mu    sync.Mutex
	local map[string]localEntry
	now   func() time.Time
}

type localEntry struct {
	token   string
	expires time.Time
}

// New returns a Locker. rdb may be nil.
func New(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{rdb: rdb, ttl: ttl, local: make(map[string]localEntry), now: time.Now}
}

// ApplicationKey scopes mutations of one application.
func ApplicationKey(applicationID uint) string {
	return fmt.Sprintf("inflight:application:%d", applicationID)
}

// ApplyKey scopes apply submissions of one student for one scholarship.
func ApplyKey(userID, scholarshipID uint) string {
	return fmt.Sprintf("inflight:apply:%d:%d", userID, scholarshipID)
}

// Acquire takes key or returns ErrInFlight. The returned release must be
// called once the mutation has committed or failed.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	if l.rdb != nil {
		return l.acquireRedis(ctx, key, token)
	}
	return l.acquireLocal(key, token)
}

func (l *Locker) acquireRedis(ctx context.Context, key, token string) (release func(), err error) {
	ctx, span := observability.StartClientSpan(ctx, "redis", "inflight.acquire")
	defer func() { span.End(err) }()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("inflight acquire %s: %w", key, err)
	}
	if !ok {
		observability.InFlightRejections.WithLabelValues(scope(key)).Inc()
		return nil, ErrInFlight
	}
	return func() {
		// Release must run even when the request context was cancelled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			observability.LogAsyncError(rctx, "inflight.release", err)
		}
	}, nil
}

func (l *Locker) acquireLocal(key, token string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, held := l.local[key]; held && now.Before(e.expires) {
		observability.InFlightRejections.WithLabelValues(scope(key)).Inc()
		return nil, ErrInFlight
	}
	l.local[key] = localEntry{token: token, expires: now.Add(l.ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if e, ok := l.local[key]; ok && e.token == token {
				delete(l.local, key)
			}
		})
	}, nil
}

func scope(key string) string {
	switch {
	case strings.HasPrefix(key, "inflight:apply:"):
		return "apply"
	case strings.HasPrefix(key, "inflight:application:"):
		return "application"
	}
	return "other"
}
