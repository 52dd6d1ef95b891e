package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"scholarhub/internal/notifications"
	"scholarhub/internal/service"
	"scholarhub/internal/testutil"
	"scholarhub/internal/workflow"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen serves env.app on a loopback port and returns its ws base URL.
func (e *testEnv) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.Shutdown() })
	return "ws://" + ln.Addr().String()
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	env := newTestEnv(t, "")
	_, token := env.user(t, "student@example.com", workflow.RoleStudent)

	status, _ := env.do(t, http.MethodGet, "/api/ws", token, nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)

	status, _ = env.do(t, http.MethodGet, "/api/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestWebsocketDisabledByFlag(t *testing.T) {
	env := newTestEnv(t, "realtime_status=off")
	_, token := env.user(t, "student@example.com", workflow.RoleStudent)

	status, _ := env.do(t, http.MethodGet, "/api/ws", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWebsocketDeliversStatusChange(t *testing.T) {
	env := newTestEnv(t, "")
	student, studentToken := env.user(t, "student@example.com", workflow.RoleStudent)
	_, modToken := env.user(t, "mod@example.com", workflow.RoleModerator)
	sch := testutil.CreateScholarship(t, env.db, nil)
	app := testutil.CreateApplication(t, env.db, student, sch, workflow.State{
		Application: workflow.StatusPending, Payment: workflow.PaymentUnpaid,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, env.srv.hub.StartWiring(ctx, env.srv.notifier))

	base := env.listen(t)
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	var (
		conn *websocket.Conn
		err  error
	)
	// The listener may need a moment before it accepts.
	require.Eventually(t, func() bool {
		var resp *http.Response
		conn, resp, err = dialer.Dial(base+"/api/ws?token="+studentToken, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return err == nil
	}, 3*time.Second, 50*time.Millisecond)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool {
		return env.srv.hub.OnlineCount(context.Background()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	status, body := env.do(t, http.MethodPatch, fmt.Sprintf("/api/rolemoderator/%d", app.ID), modToken,
		service.ModerateInput{Action: "approve"})
	require.Equal(t, http.StatusOK, status, string(body))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame struct {
		Type    string                     `json:"type"`
		Payload notifications.StatusChange `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg, &frame))
	assert.Equal(t, notifications.TypeApplicationStatus, frame.Type)
	assert.Equal(t, app.TrackingID, frame.Payload.TrackingID)
	assert.Equal(t, workflow.StatusPending, frame.Payload.From.Application)
	assert.Equal(t, workflow.StatusApproved, frame.Payload.To.Application)
	assert.Equal(t, workflow.EventApplyApproved, frame.Payload.Event)
}
