// Package dispatch routes outbound messages to the transport that owns the
// recipient: console users to the WebSocket hub, everyone else to WhatsApp.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/sundaybot/internal/domain"
	"github.com/ashureev/sundaybot/internal/identity"
)

// Sender delivers one message to one user.
type Sender interface {
	Send(ctx context.Context, userID string, msg domain.Message) error
}

// Mux picks a Sender by user id. A nil console sender drops console
// traffic with an error.
type Mux struct {
	whatsapp Sender
	console  Sender
}

// NewMux returns a Mux.
func NewMux(whatsapp, console Sender) *Mux {
	return &Mux{whatsapp: whatsapp, console: console}
}

// Send implements engine.Dispatcher.
func (m *Mux) Send(ctx context.Context, userID string, msg domain.Message) error {
	target, name := m.whatsapp, "whatsapp"
	if identity.IsConsole(userID) {
		target, name = m.console, "console"
	}
	if target == nil {
		return fmt.Errorf("no %s transport configured", name)
	}

	start := time.Now()
	if err := target.Send(ctx, userID, msg); err != nil {
		return fmt.Errorf("%s send: %w", name, err)
	}
	slog.Debug("Message dispatched", "transport", name, "user_id", userID, "kind", msg.Kind, "duration", time.Since(start))
	return nil
}
