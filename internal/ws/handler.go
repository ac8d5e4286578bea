package ws

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const sessionIDLocal = "ws_session_id"

// Handler streams the events of the session named by the session_id query
// parameter. UpgradeMiddleware must run first.
func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		sessionID, ok := c.Locals(sessionIDLocal).(uuid.UUID)
		if !ok {
			_ = c.Close()
			return
		}

		client := &Client{
			hub:       hub,
			conn:      c,
			sessionID: sessionID,
			send:      make(chan []byte, 256),
		}

		if !hub.join(client) {
			_ = c.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		sessionID, err := uuid.Parse(c.Query("session_id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "session_id must be a UUID")
		}

		c.Locals(sessionIDLocal, sessionID)
		return c.Next()
	}
}
