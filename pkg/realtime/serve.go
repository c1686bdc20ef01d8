package realtime

import (
	"net/http"

	"github.com/gorilla/websocket"

	"glimpse/pkg/auth"
	"glimpse/pkg/logger"
	"glimpse/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// signed identity headers are the trust boundary, not the origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an authenticated request to a websocket connection and
// attaches it to the hub. Identity must already be resolved by the auth
// middleware.
func ServeWS(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		if userID == "" {
			utils.JSONError(w, http.StatusUnauthorized, "forbidden")
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws_upgrade_failed", "user", userID, "error", err)
			return
		}
		c := newClient(h, conn, userID)
		h.register(c)
		go c.writePump()
		go c.readPump()
	}
}
