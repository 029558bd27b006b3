package server

import (
	"encoding/json"

	"bookclub/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// rejectSocket tells the peer why it is being dropped and closes the socket.
func rejectSocket(conn *websocket.Conn, reason string) {
	msg, _ := json.Marshal(fiber.Map{"type": "error", "error": reason})
	_ = conn.WriteMessage(websocket.TextMessage, msg)
	_ = conn.Close()
}

func socketUserID(conn *websocket.Conn) (uint, bool) {
	uid, ok := conn.Locals("userID").(uint)
	return uid, ok && uid != 0
}

// WebsocketHandler serves /api/ws: user-directed events such as an
// accepted join or a removal from a group.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := socketUserID(conn)
		if !ok {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("notification socket rejected", "user_id", uid, "error", err)
			rejectSocket(conn, err.Error())
			return
		}

		client.TrySend([]byte(`{"type":"connected"}`))

		go client.WritePump()
		client.ReadPump()
	})
}

// ListenHandler serves /api/ws/listen: snapshot listeners. Clients send
// listen/unlisten messages and receive a full snapshot per change.
func (s *Server) ListenHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := socketUserID(conn)
		if !ok {
			_ = conn.Close()
			return
		}

		client, err := s.listenerHub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("listener socket rejected", "user_id", uid, "error", err)
			rejectSocket(conn, err.Error())
			return
		}
		middleware.Logger.Debug("listener socket connected", "user_id", uid)

		go client.WritePump()
		// Returns on disconnect; the hub then ends every listener of this client.
		client.ReadPump()
	})
}
