// Package progress streams pipeline progress to the browser tab that
// started the run over a WebSocket.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const defaultWriteTimeout = 5 * time.Second

// Event is a frame sent to the browser.
type Event struct {
	Type    string  `json:"type"` // "progress", "started", "finished"
	Stage   string  `json:"stage,omitempty"`
	Message string  `json:"message,omitempty"`
	Percent float64 `json:"percent,omitempty"`
}

// Hub tracks one WebSocket connection per user and tab session.
type Hub struct {
	mu           sync.RWMutex
	active       map[string]map[string]*websocket.Conn
	writeTimeout time.Duration
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active:       make(map[string]map[string]*websocket.Conn),
		writeTimeout: defaultWriteTimeout,
	}
}

// GetActive returns the active connection for a user and session.
func (h *Hub) GetActive(userID, sessionID string) *websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sessions, ok := h.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register adds a connection for a user/session, closing any connection it replaces.
func (h *Hub) Register(userID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[userID]; !exists {
		h.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := h.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	h.active[userID][sessionID] = conn
	slog.Info("Progress stream registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes a connection if it is still the active one.
func (h *Hub) Unregister(userID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessions, ok := h.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(h.active, userID)
			}
			slog.Info("Progress stream unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// CloseSession terminates the stream of one tab session, if any.
func (h *Hub) CloseSession(userID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.active[userID]
	if !ok {
		return
	}
	if conn, ok := sessions[sessionID]; ok {
		_ = conn.Close(websocket.StatusNormalClosure, "session closed")
		delete(sessions, sessionID)
		slog.Info("Progress stream closed", "user_id", userID, "session_id", sessionID)
	}
	if len(sessions) == 0 {
		delete(h.active, userID)
	}
}

// Publish sends ev to the tab's stream. It is a no-op when the tab has no
// stream open; write failures are logged and dropped.
func (h *Hub) Publish(userID, sessionID string, ev Event) {
	conn := h.GetActive(userID, sessionID)
	if conn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, ev); err != nil {
		slog.Debug("Progress write failed", "user_id", userID, "session_id", sessionID, "error", err)
	}
}
