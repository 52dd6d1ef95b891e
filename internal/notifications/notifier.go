// Package notifications provides real-time notification delivery and management.
package notifications

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"scholarhub/internal/workflow"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes notifications into Redis channels. Without Redis it
// hands them straight to a local sink so a single node still delivers.
type Notifier struct {
	rdb *redis.Client

	mu   sync.RWMutex
	sink func(channel, payload string)
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func (n *Notifier) publish(ctx context.Context, channel string, ev Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return err
	}
	if n.rdb != nil {
		return n.rdb.Publish(ctx, channel, payload).Err()
	}
	n.mu.RLock()
	sink := n.sink
	n.mu.RUnlock()
	if sink != nil {
		sink(channel, payload)
	}
	return nil
}

// PublishUser sends ev to one user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, ev Event) error {
	return n.publish(ctx, UserChannel(userID), ev)
}

// PublishRole sends ev to everyone connected with role.
func (n *Notifier) PublishRole(ctx context.Context, role workflow.Role, ev Event) error {
	return n.publish(ctx, RoleChannel(role), ev)
}

// PublishStatusChange tells the owning student their application moved.
func (n *Notifier) PublishStatusChange(ctx context.Context, userID uint, change StatusChange) error {
	return n.PublishUser(ctx, userID, Event{Type: TypeApplicationStatus, Payload: change})
}

// Subscribe delivers every user and role notification to onMessage until
// ctx is done. With no Redis the notifier's own publishes are delivered.
func (n *Notifier) Subscribe(ctx context.Context, onMessage func(channel, payload string)) error {
	safe := func(channel, payload string) {
		defer func() {
			if r := recover(); r != nil {
				slog.Default().Error("panic in notification subscriber",
					slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			}
		}()
		onMessage(channel, payload)
	}

	if n.rdb == nil {
		n.mu.Lock()
		n.sink = safe
		n.mu.Unlock()
		return nil
	}

	sub := n.rdb.PSubscribe(ctx, "notifications:user:*", "notifications:role:*")
	// Wait for the subscription so publishes right after return are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				safe(msg.Channel, msg.Payload)
			}
		}
	}()

	return nil
}
