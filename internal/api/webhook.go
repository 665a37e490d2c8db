package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/sundaybot/internal/domain"
	"github.com/ashureev/sundaybot/internal/store"
	"github.com/ashureev/sundaybot/internal/whatsapp"
)

const (
	defaultHandleTimeout = 60 * time.Second
	maxWebhookBody       = 1 << 20
)

// Engine handles one normalized inbound message.
type Engine interface {
	Handle(ctx context.Context, in domain.Inbound) error
}

// WebhookConfig holds webhook settings.
type WebhookConfig struct {
	VerifyToken string
	// HandleTimeout bounds the processing of one message, detached from the
	// provider's request.
	HandleTimeout time.Duration
}

// WebhookHandler serves the provider's verification handshake and message
// deliveries.
type WebhookHandler struct {
	engine Engine
	inbox  store.Inbox
	cfg    WebhookConfig
	now    func() time.Time
	spawn  func(func())

	inflight sync.WaitGroup
}

// NewWebhookHandler creates a webhook handler. A nil inbox disables
// de-duplication. Each delivery is processed on its own goroutine, in
// payload order, so the provider gets its 200 immediately.
func NewWebhookHandler(engine Engine, inbox store.Inbox, cfg WebhookConfig) *WebhookHandler {
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = defaultHandleTimeout
	}
	return &WebhookHandler{
		engine: engine,
		inbox:  inbox,
		cfg:    cfg,
		now:    time.Now,
		spawn:  func(fn func()) { go fn() },
	}
}

// RegisterRoutes registers the webhook routes.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Get("/webhook", h.Verify)
	r.Post("/webhook", h.Receive)
}

// Verify answers the subscription handshake by echoing hub.challenge when
// the token matches.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, token, challenge := q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge")

	if mode != "subscribe" || h.cfg.VerifyToken == "" || token != h.cfg.VerifyToken {
		slog.Warn("Webhook verification failed", "mode", mode)
		Error(w, http.StatusForbidden, "verification failed")
		return
	}

	slog.Info("Webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// Receive acknowledges every delivery with 200, including malformed ones,
// so the provider does not retry them.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload whatsapp.WebhookPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&payload); err != nil {
		slog.Warn("Ignoring malformed webhook payload", "error", err)
		JSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	received := h.now()
	var batch []domain.Inbound
	for _, m := range payload.Messages() {
		in := whatsapp.Normalize(m, received)
		if in.UserID == "" {
			continue
		}
		if !h.firstDelivery(r.Context(), in.MessageID) {
			slog.Debug("Skipping duplicate delivery", "message_id", in.MessageID)
			continue
		}
		batch = append(batch, in)
	}

	if len(batch) > 0 {
		h.inflight.Add(1)
		h.spawn(func() {
			defer h.inflight.Done()
			for _, in := range batch {
				h.handle(in)
			}
		})
	}

	JSON(w, http.StatusOK, map[string]int{"accepted": len(batch)})
}

// Wait blocks until every accepted delivery has been handled or ctx ends.
func (h *WebhookHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// firstDelivery reports whether the message id has not been seen. Inbox
// failures let the message through: a rare double reply beats a lost one.
func (h *WebhookHandler) firstDelivery(ctx context.Context, messageID string) bool {
	if h.inbox == nil || messageID == "" {
		return true
	}
	fresh, err := h.inbox.MarkProcessed(ctx, messageID)
	if err != nil {
		slog.Error("Inbox lookup failed", "message_id", messageID, "error", err)
		return true
	}
	return fresh
}

func (h *WebhookHandler) handle(in domain.Inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.HandleTimeout)
	defer cancel()

	if err := h.engine.Handle(ctx, in); err != nil {
		slog.Error("Failed to handle inbound message", "user_id", in.UserID, "message_id", in.MessageID, "error", err)
	}
}
