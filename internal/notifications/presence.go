package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	onlineSetKey      = "ws:online_users"
	lastSeenKeyPrefix = "ws:last_seen:"
	lastSeenTTL       = 90 * time.Second
)

// Presence counts connected users on this node and mirrors them into Redis
// so every node can report the same online total.
type Presence struct {
	rdb *redis.Client

	mu    sync.Mutex
	local map[uint]int
}

// NewPresence returns a tracker; rdb may be nil.
func NewPresence(rdb *redis.Client) *Presence {
	return &Presence{rdb: rdb, local: make(map[uint]int)}
}

func lastSeenKey(userID uint) string {
	return lastSeenKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Connected records one more connection for userID.
func (p *Presence) Connected(ctx context.Context, userID uint) {
	p.mu.Lock()
	p.local[userID]++
	p.mu.Unlock()
	p.Touch(ctx, userID)
}

// Touch refreshes the user's last-seen key.
func (p *Presence) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	pipe := p.rdb.Pipeline()
	pipe.SAdd(ctx, onlineSetKey, uid)
	pipe.Set(ctx, lastSeenKey(userID), time.Now().Unix(), lastSeenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Default().WarnContext(ctx, "presence touch failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// Disconnected drops one connection; the last one clears the Redis entry.
func (p *Presence) Disconnected(ctx context.Context, userID uint) {
	p.mu.Lock()
	p.local[userID]--
	remaining := p.local[userID]
	if remaining <= 0 {
		delete(p.local, userID)
	}
	p.mu.Unlock()

	if remaining > 0 || p.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	pipe := p.rdb.Pipeline()
	pipe.SRem(ctx, onlineSetKey, uid)
	pipe.Del(ctx, lastSeenKey(userID))
	_, _ = pipe.Exec(ctx)
}

// OnlineCount returns how many distinct users are connected anywhere.
// Entries whose last-seen key expired are pruned on the way.
func (p *Presence) OnlineCount(ctx context.Context) int {
	p.mu.Lock()
	ids := make(map[uint]struct{}, len(p.local))
	for id := range p.local {
		ids[id] = struct{}{}
	}
	p.mu.Unlock()

	if p.rdb != nil {
		members, err := p.rdb.SMembers(ctx, onlineSetKey).Result()
		if err == nil {
			for _, raw := range members {
				id64, err := strconv.ParseUint(raw, 10, 64)
				if err != nil {
					continue
				}
				id := uint(id64)
				if n, err := p.rdb.Exists(ctx, lastSeenKey(id)).Result(); err == nil && n == 0 {
					_ = p.rdb.SRem(ctx, onlineSetKey, raw).Err()
					continue
				}
				ids[id] = struct{}{}
			}
		}
	}
	return len(ids)
}
