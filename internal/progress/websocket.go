package progress

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/deepcode-chat/internal/identity"
	"github.com/coder/websocket"
)

// Handler upgrades /ws/progress requests and registers them with the hub.
type Handler struct {
	hub            *Hub
	originPatterns []string
}

// NewHandler creates a WebSocket handler. originPatterns follow
// websocket.AcceptOptions; nil means same-origin only.
func NewHandler(hub *Hub, originPatterns []string) *Handler {
	return &Handler{hub: hub, originPatterns: originPatterns}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.hub.Register(userID, sessionID, ws)
	defer h.hub.Unregister(userID, sessionID, ws)

	// The stream is server-to-client only; CloseRead discards client frames
	// and cancels ctx once the peer goes away.
	ctx := ws.CloseRead(r.Context())
	<-ctx.Done()
}
