package controllers

import (
	"bimbel_go/middleware"
	"bimbel_go/services/session"
	"bimbel_go/services/websocket"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const wsClientLocal = "ws_client_id"

type WebSocketController struct {
	hub      *websocket.Hub
	sessions *session.Manager
}

func NewWebSocketController(hub *websocket.Hub, sessions *session.Manager) *WebSocketController {
	return &WebSocketController{hub: hub, sessions: sessions}
}

// Upgrade rejects plain HTTP requests and hands the client ID to the socket handler.
func (wsc *WebSocketController) Upgrade(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(wsClientLocal, middleware.ClientID(c))
	return c.Next()
}

// WebSocketHandler streams {"type":"session"} messages for the client's
// resolver, starting with its current state.
func (wsc *WebSocketController) WebSocketHandler() fiber.Handler {
	return fiberws.New(func(c *fiberws.Conn) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("WebSocket handler panic")
			}
		}()

		clientID, _ := c.Locals(wsClientLocal).(string)
		if clientID == "" {
			logrus.Warn("WebSocket connection rejected: missing client id")
			_ = c.WriteMessage(fiberws.CloseMessage, []byte("missing client id"))
			_ = c.Close()
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		r, err := wsc.sessions.Resolve(ctx, clientID)
		cancel()
		if err != nil {
			logrus.WithError(err).WithField("client_id", clientID).Debug("initial session resolve interrupted")
		}

		logrus.WithField("client_id", clientID).Debug("WebSocket connection established")
		wsc.hub.ServeFiberWS(c, clientID, websocket.Message{Type: "session", Data: r.State()})
	})
}

// GetWebSocketStats reports connected sockets and live resolvers.
func (wsc *WebSocketController) GetWebSocketStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"connected_clients": wsc.hub.GetClientCount(),
		"active_sessions":   wsc.sessions.Len(),
		"status":            "active",
	})
}
