package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"inventorycounter/internal/logger"
)

// viewerReadTimeout is extended by every pong; the hub pings well within it.
const viewerReadTimeout = 60 * time.Second

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is where viewer connections are registered.
type Hub interface {
	Register(client *websocket.Conn)
	Unregister(client *websocket.Conn)
}

// ViewWebsocketHandler handles viewer connections over WebSocket and
// registers them in the hub to receive views and session outcomes.
func ViewWebsocketHandler(hub Hub, logger *logger.Logger) http.HandlerFunc {
	return viewWebsocketHandler(hub, logger, viewerReadTimeout)
}

func viewWebsocketHandler(hub Hub, logger *logger.Logger, readTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(readTimeout))
		connection.SetPongHandler(func(string) error {
			connection.SetReadDeadline(time.Now().Add(readTimeout))
			return nil
		})

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				break
			}
			connection.SetReadDeadline(time.Now().Add(readTimeout))
		}
	}
}
