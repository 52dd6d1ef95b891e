package server

import (
	"log/slog"

	"scholarhub/internal/featureflags"
	"scholarhub/internal/models"
	"scholarhub/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func websocketRequest(c *fiber.Ctx) bool {
	return websocket.IsWebSocketUpgrade(c)
}

// WebsocketUpgrade rejects plain HTTP requests and disabled realtime before
// the upgrade. It runs after AuthRequired.
func (s *Server) WebsocketUpgrade(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	if !s.featureFlags.Enabled(featureflags.RealtimeStatus, caller.UserID) {
		return models.RespondWithError(c, fiber.StatusNotFound, routeNotFound(c))
	}
	if !websocketRequest(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	return c.Next()
}

// WebsocketHandler handles GET /api/ws
// @Summary Status push channel
// @Description WebSocket delivering application.status, application.created and application.feedback events. Pass the JWT as ?token= when headers cannot be set.
// @Tags realtime
// @Security BearerAuth
// @Param token query string false "JWT for browser clients"
// @Success 101 {string} string "Switching Protocols"
// @Router /ws [get]
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		caller, ok := conn.Locals(localCaller).(service.Caller)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(caller.UserID, caller.Role, conn)
		if err != nil {
			slog.Warn("websocket register failed",
				slog.Uint64("user_id", uint64(caller.UserID)),
				slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		client.Serve()
	})
}
