//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/sundaybot/internal/domain"
	"github.com/ashureev/sundaybot/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

type recordingEngine struct {
	mu  sync.Mutex
	got []domain.Inbound
	err error
}

func (e *recordingEngine) Handle(_ context.Context, in domain.Inbound) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, in)
	return e.err
}

type memInbox struct {
	seen map[string]bool
	err  error
}

func (m *memInbox) MarkProcessed(_ context.Context, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func newTestWebhook(engine Engine, inbox store.Inbox) http.Handler {
	h := NewWebhookHandler(engine, inbox, WebhookConfig{VerifyToken: "tok"})
	h.spawn = func(fn func()) { fn() }
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

const delivery = `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{
  "messages":[{"from":"263771234567","id":"wamid.1","timestamp":"1730000000","type":"text","text":{"body":"Menu"}}]}}]}]}`

func TestWebhookVerify(t *testing.T) {
	r := newTestWebhook(&recordingEngine{}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=12345", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "12345" {
		t.Fatalf("handshake: status %d body %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong token: status %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
		t.Errorf("expected a JSON error body, got %q (%v)", rec.Body.String(), err)
	}
}

const batchedDelivery = `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{
  "messages":[
    {"from":"263771234567","id":"wamid.%[1]d.1","timestamp":"1730000000","type":"text","text":{"body":"Jane"}},
    {"from":"263771234567","id":"wamid.%[1]d.2","timestamp":"1730000001","type":"text","text":{"body":"Doe"}},
    {"from":"263771234567","id":"wamid.%[1]d.3","timestamp":"1730000002","type":"text","text":{"body":"01/01/2000"}}
  ]}}]}]}`

func TestWebhookKeepsPayloadOrder(t *testing.T) {
	for i := 0; i < 50; i++ {
		engine := &recordingEngine{}
		h := NewWebhookHandler(engine, nil, WebhookConfig{VerifyToken: "tok"})

		rec := httptest.NewRecorder()
		h.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(fmt.Sprintf(batchedDelivery, i))))
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d", rec.Code)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := h.Wait(ctx)
		cancel()
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}

		var got []string
		for _, in := range engine.got {
			got = append(got, in.Text)
		}
		if strings.Join(got, "|") != "Jane|Doe|01/01/2000" {
			t.Fatalf("delivery %d handled as %v", i, got)
		}
	}
}

type blockingEngine struct{ release chan struct{} }

func (e *blockingEngine) Handle(ctx context.Context, _ domain.Inbound) error {
	select {
	case <-e.release:
	case <-ctx.Done():
	}
	return nil
}

func TestWebhookWaitHonoursDeadline(t *testing.T) {
	engine := &blockingEngine{release: make(chan struct{})}
	h := NewWebhookHandler(engine, nil, WebhookConfig{})

	rec := httptest.NewRecorder()
	h.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(delivery)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while a message is in flight, got %v", err)
	}

	close(engine.release)
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait after release: %v", err)
	}
}

func TestWebhookReceiveDeduplicates(t *testing.T) {
	engine := &recordingEngine{}
	r := newTestWebhook(engine, &memInbox{seen: map[string]bool{}})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(delivery)))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status %d", i, rec.Code)
		}
	}

	if len(engine.got) != 1 {
		t.Fatalf("engine saw %d messages, want 1", len(engine.got))
	}
	in := engine.got[0]
	if in.UserID != "263771234567" || in.Command != "menu" || in.Text != "Menu" {
		t.Errorf("unexpected inbound %+v", in)
	}
}

func TestWebhookReceiveInboxFailureStillHandles(t *testing.T) {
	engine := &recordingEngine{err: errors.New("engine failed")}
	r := newTestWebhook(engine, &memInbox{err: errors.New("db down")})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(delivery)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if len(engine.got) != 1 {
		t.Errorf("engine saw %d messages, want 1", len(engine.got))
	}
}

func TestWebhookReceiveMalformed(t *testing.T) {
	engine := &recordingEngine{}
	r := newTestWebhook(engine, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json")))
	if rec.Code != http.StatusOK {
		t.Errorf("malformed payload should still be acknowledged, got %d", rec.Code)
	}
	if len(engine.got) != 0 {
		t.Error("engine called for malformed payload")
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{"database": pinger{}}, 0)
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy: status %d", rec.Code)
	}

	h = NewHealthHandler(map[string]Pinger{"database": pinger{}, "sessions": pinger{err: errors.New("down")}}, 0)
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded: status %d", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || body.Checks["sessions"] != "unreachable" || body.Checks["database"] != "ok" {
		t.Errorf("unexpected body %+v", body)
	}
}
