package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"scholarhub/internal/observability"
	"scholarhub/internal/workflow"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// Hub maps userID -> connected Clients and fans notifications out to them.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	presence   *Presence
}

// NewHub creates a new Hub instance for managing notifications.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		presence: NewPresence(rdb),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "notification hub" }

// Register a connection for a given user. Returns the Client or error if
// limits are exceeded.
func (h *Hub) Register(userID uint, role workflow.Role, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerFull
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}

	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserFull
	}

	client := newClient(h, conn, userID, role)
	client.onActivity = func(uid uint) {
		h.presence.Touch(context.Background(), uid)
	}

	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.WebSocketConnections.Inc()
	h.presence.Connected(context.Background(), userID)
	return client, nil
}

// UnregisterClient removes a client; it is safe to call more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()
	client.Close()

	if removed {
		observability.WebSocketConnections.Dec()
		h.presence.Disconnected(context.Background(), client.UserID)
	}
}

// SendUser sends message to all connections for userID.
func (h *Hub) SendUser(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range h.conns[userID] {
		c.Deliver(data)
	}
}

// SendRole sends message to every connection whose user holds role.
func (h *Hub) SendRole(role workflow.Role, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			if c.Role == role {
				c.Deliver(data)
			}
		}
	}
}

// OnlineCount is the number of distinct users connected across nodes.
func (h *Hub) OnlineCount(ctx context.Context) int {
	return h.presence.OnlineCount(ctx)
}

// Route delivers one published payload by its channel name.
func (h *Hub) Route(channel, payload string) {
	switch {
	case strings.HasPrefix(channel, "notifications:role:"):
		h.SendRole(workflow.Role(strings.TrimPrefix(channel, "notifications:role:")), payload)
	case strings.HasPrefix(channel, "notifications:user:"):
		var userID uint
		if _, err := fmt.Sscanf(channel, "notifications:user:%d", &userID); err != nil {
			slog.Default().Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		h.SendUser(userID, payload)
	default:
		slog.Default().Warn("invalid notification channel", slog.String("channel", channel))
	}
}

// StartWiring connects the Notifier to this hub so published notifications
// reach the matching connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.Subscribe(ctx, h.Route)
}

// Shutdown asks every connection to go away and forgets them.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	var gone []*Client
	for _, clients := range h.conns {
		for c := range clients {
			c.goAway()
			gone = append(gone, c)
		}
	}
	observability.WebSocketConnections.Sub(float64(h.totalConns))
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	for _, c := range gone {
		h.presence.Disconnected(ctx, c.UserID)
	}
	return nil
}
