package notifications

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"scholarhub/internal/observability"
	"scholarhub/internal/workflow"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Peers only send pongs and the occasional ack.
	maxInboundFrame = 1024

	outboxSize = 64
)

// Client is one websocket connection of a signed-in user. Frames reach it
// through Deliver and leave through the write loop started by Serve.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	UserID uint
	Role   workflow.Role

	outbox    chan []byte
	done      chan struct{}
	closing   sync.Once
	dropped   atomic.Int64
	goingAway atomic.Bool

	onActivity func(userID uint)
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint, role workflow.Role) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		UserID: userID,
		Role:   role,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
}

// Outbox exposes queued frames. Only the write loop and tests drain it.
func (c *Client) Outbox() <-chan []byte { return c.outbox }

// Dropped counts frames lost to a full outbox.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// Deliver queues frame without blocking and reports whether it was queued.
// The last outbox slot is kept for a messages_dropped notice, so a client
// that falls behind learns it must refetch.
func (c *Client) Deliver(frame []byte) bool {
	select {
	case <-c.done:
		observability.WebSocketDrops.WithLabelValues("closed").Inc()
		return false
	default:
	}

	if len(c.outbox) < cap(c.outbox)-1 {
		select {
		case c.outbox <- frame:
			return true
		default:
		}
	}

	n := c.dropped.Add(1)
	observability.WebSocketDrops.WithLabelValues("full").Inc()
	slog.Default().Warn("websocket outbox full, frame dropped",
		slog.Uint64("user_id", uint64(c.UserID)), slog.Int64("dropped", n))
	if notice, err := (Event{Type: TypeMessagesDropped, Payload: map[string]any{"reason": "buffer_full", "dropped": n}}).Encode(); err == nil {
		select {
		case c.outbox <- []byte(notice):
		default:
		}
	}
	return false
}

// Close stops the write loop. Safe to call more than once.
func (c *Client) Close() {
	c.closing.Do(func() { close(c.done) })
}

// Serve runs the connection until the peer goes away, then unregisters.
func (c *Client) Serve() {
	go c.writeLoop()
	c.readLoop()
}

func (c *Client) alive() {
	if c.onActivity != nil {
		c.onActivity(c.UserID)
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.alive()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Default().Debug("websocket closed unexpectedly",
					slog.Uint64("user_id", uint64(c.UserID)), slog.String("error", err.Error()))
			}
			return
		}
		c.alive()
	}
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	write := func(kind int, data []byte) bool {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data) == nil
	}

	for {
		select {
		case <-c.done:
			code, reason := websocket.CloseNormalClosure, ""
			if c.goingAway.Load() {
				code, reason = websocket.CloseGoingAway, "Server shutting down"
			}
			write(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
			_ = c.conn.Close()
			return
		case frame := <-c.outbox:
			if !write(websocket.TextMessage, frame) {
				c.Close()
				return
			}
		case <-ping.C:
			if !write(websocket.PingMessage, nil) {
				c.Close()
				return
			}
		}
	}
}

// goAway tells the peer the server is stopping. The write loop sends the
// close frame so writes stay on one goroutine.
func (c *Client) goAway() {
	c.goingAway.Store(true)
	c.Close()
}
