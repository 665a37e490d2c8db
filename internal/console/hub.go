// Package console serves a browser developer console that talks to the
// engine over a WebSocket instead of WhatsApp.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/sundaybot/internal/domain"
)

// ErrNotConnected is returned when a console user has no open socket.
var ErrNotConnected = errors.New("console user not connected")

// Hub tracks the open socket of each console user and delivers engine
// replies to it.
type Hub struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string]*websocket.Conn)}
}

// Register makes conn the socket for userID, closing any previous one.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.active[userID]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "replaced by a newer tab")
	}
	h.active[userID] = conn
	slog.Info("Console connected", "user_id", userID)
}

// Unregister forgets conn if it is still the user's socket.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.active[userID]; ok && current == conn {
		delete(h.active, userID)
		slog.Info("Console disconnected", "user_id", userID)
	}
}

// Connected reports whether userID has an open socket.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.active[userID]
	return ok
}

// Send writes msg to the user's socket as a JSON frame.
func (h *Hub) Send(ctx context.Context, userID string, msg domain.Message) error {
	h.mu.RLock()
	conn, ok := h.active[userID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, userID)
	}
	return writeJSON(ctx, conn, frame{Type: "message", Message: &msg})
}

// frame is the JSON shape of server-to-browser messages.
type frame struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
