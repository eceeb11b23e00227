package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// NewUpgrader accepts any origin when allowedOrigin is empty.
func NewUpgrader(allowedOrigin string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
}

// Serve runs an upgraded connection for sessionID until it drops.
func (h *Hub) Serve(conn *websocket.Conn, sessionID string) {
	NewClient(sessionID, conn, h).Run()
}
