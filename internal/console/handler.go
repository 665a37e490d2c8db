package console

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ashureev/sundaybot/internal/domain"
	"github.com/ashureev/sundaybot/internal/identity"
)

const handleTimeout = 60 * time.Second

// Engine is the part of the dialogue engine the console drives.
type Engine interface {
	Handle(ctx context.Context, in domain.Inbound) error
}

// inbound is a browser-to-server frame. Type is "text", "select" or "ping".
type inbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Handler upgrades console requests and feeds each frame to the engine.
type Handler struct {
	hub           *Hub
	engine        Engine
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a console WebSocket handler.
func NewHandler(hub *Hub, engine Engine, allowedOrigin string, isDev bool) *Handler {
	return &Handler{hub: hub, engine: engine, allowedOrigin: allowedOrigin, isDev: isDev}
}

// ServeHTTP implements http.Handler for WebSocket upgrade. The user id
// comes from identity.ConsoleMiddleware.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if !identity.IsConsole(userID) {
		http.Error(w, "console identity required", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		slog.Error("Failed to accept console WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "console closed"); closeErr != nil {
			slog.Debug("Failed to close console websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.hub.Register(userID, ws)
	defer h.hub.Unregister(userID, ws)

	ctx := r.Context()
	if err := writeJSON(ctx, ws, frame{Type: "hello", UserID: userID}); err != nil {
		return
	}
	h.readLoop(ctx, ws, userID)
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("Console closed by client", "user_id", userID)
			} else {
				slog.Warn("Console read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			msg = inbound{Type: "text", Text: string(data)}
		}

		in, ok := toInbound(userID, msg)
		if !ok {
			if msg.Type == "ping" {
				_ = writeJSON(ctx, ws, frame{Type: "pong"})
			}
			continue
		}

		hctx, cancel := context.WithTimeout(ctx, handleTimeout)
		if err := h.engine.Handle(hctx, in); err != nil {
			slog.Warn("Console message failed", "error", err, "user_id", userID)
		}
		cancel()
	}
}

// toInbound normalizes a console frame the same way webhook messages are.
func toInbound(userID string, msg inbound) (domain.Inbound, bool) {
	in := domain.Inbound{UserID: userID, MessageID: uuid.NewString(), ReceivedAt: time.Now()}
	switch msg.Type {
	case "text":
		in.Kind = domain.InboundText
		in.Text = msg.Text
	case "select":
		in.Kind = domain.InboundButton
		in.Text = msg.ID
	default:
		return domain.Inbound{}, false
	}
	in.Command = strings.ToLower(strings.TrimSpace(in.Text))
	return in, true
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.isDev || h.allowedOrigin == "" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	// Same-origin pages served by this process.
	if strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host {
		return true
	}
	slog.Warn("Console origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
