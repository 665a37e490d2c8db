package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashureev/sundaybot/internal/catalog"
	"github.com/ashureev/sundaybot/internal/content"
	"github.com/ashureev/sundaybot/internal/domain"
	"github.com/ashureev/sundaybot/internal/identity"
	"github.com/ashureev/sundaybot/internal/store"
)

var fixedNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

const adminNumber = "263770000000"

// memSessions round-trips every state through the persisted encoding so
// tests catch states that would not survive storage.
type memSessions struct {
	mu      sync.Mutex
	raw     map[string][]byte
	saveErr error
	saves   int
}

func newMemSessions() *memSessions {
	return &memSessions{raw: make(map[string][]byte)}
}

func (m *memSessions) LoadSession(_ context.Context, userID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.raw[userID]
	if !ok {
		return nil, nil
	}
	st, err := domain.UnmarshalState(raw)
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &domain.Session{UserID: userID, State: st}, nil
}

func (m *memSessions) SaveSession(_ context.Context, sess *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	raw, err := domain.MarshalState(sess.State)
	if err != nil {
		return err
	}
	m.raw[sess.UserID] = raw
	m.saves++
	return nil
}

func (m *memSessions) DeleteSession(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.raw, userID)
	return nil
}

type memRegistrations struct {
	mu        sync.Mutex
	records   map[string]*domain.Registration
	getErr    error
	createErr error
	creates   int
}

func newMemRegistrations() *memRegistrations {
	return &memRegistrations{records: make(map[string]*domain.Registration)}
}

func regKey(event domain.EventType, id string) string {
	return string(event) + "/" + id
}

func (m *memRegistrations) GetRegistration(_ context.Context, event domain.EventType, id string) (*domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.records[regKey(event, id)]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memRegistrations) CreateRegistration(_ context.Context, reg *domain.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	key := regKey(reg.Event, reg.Data.IDPassport)
	if existing, ok := m.records[key]; ok {
		if existing.Data == reg.Data {
			reg.CreatedAt = existing.CreatedAt
			return nil
		}
		return store.ErrConflict
	}
	reg.CreatedAt = fixedNow
	cp := *reg
	m.records[key] = &cp
	return nil
}

func (m *memRegistrations) ListRegistrations(_ context.Context, event domain.EventType) ([]*domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Registration
	for _, r := range m.records {
		if r.Event == event {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeContent struct {
	lessons    map[string]*domain.Lesson
	hymns      map[string]*domain.Hymn
	passages   map[string]*domain.Passage
	passageErr error
	lessonErr  error
}

func (f *fakeContent) CurrentLesson(_ context.Context, class catalog.Class, _ time.Time) (*domain.Lesson, error) {
	if f.lessonErr != nil {
		return nil, f.lessonErr
	}
	l, ok := f.lessons[class.Key]
	if !ok {
		return nil, content.ErrNotFound
	}
	return l, nil
}

func (f *fakeContent) Hymn(_ context.Context, book catalog.Source, number string) (*domain.Hymn, error) {
	h, ok := f.hymns[book.Key+"/"+number]
	if !ok {
		return nil, content.ErrNotFound
	}
	return h, nil
}

func (f *fakeContent) Passage(_ context.Context, _ catalog.Source, ref string) (*domain.Passage, error) {
	if f.passageErr != nil {
		return nil, f.passageErr
	}
	p, ok := f.passages[strings.ToLower(ref)]
	if !ok {
		return nil, content.ErrNotFound
	}
	return p, nil
}

type sentMessage struct {
	to  string
	msg domain.Message
}

type recorder struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (r *recorder) Send(_ context.Context, userID string, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{to: userID, msg: msg})
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recorder) since(n int, userID string) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, s := range r.sent[n:] {
		if s.to == userID {
			out = append(out, s.msg)
		}
	}
	return out
}

type fakeAnswerer struct {
	answer    string
	err       error
	questions []string
	materials []string
}

func (f *fakeAnswerer) Answer(_ context.Context, question, material string) (string, error) {
	f.questions = append(f.questions, question)
	f.materials = append(f.materials, material)
	return f.answer, f.err
}

type fakeExporter struct {
	report string
	err    error
	events []domain.EventType
}

func (f *fakeExporter) Export(_ context.Context, event domain.EventType) (string, error) {
	f.events = append(f.events, event)
	return f.report, f.err
}

type harness struct {
	t        *testing.T
	eng      *Engine
	sessions *memSessions
	regs     *memRegistrations
	content  *fakeContent
	out      *recorder
	answerer *fakeAnswerer
	exporter *fakeExporter
	jobs     []func()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		sessions: newMemSessions(),
		regs:     newMemRegistrations(),
		content: &fakeContent{
			lessons:  map[string]*domain.Lesson{},
			hymns:    map[string]*domain.Hymn{},
			passages: map[string]*domain.Passage{},
		},
		out:      &recorder{},
		answerer: &fakeAnswerer{answer: "Moses led Israel out of Egypt."},
		exporter: &fakeExporter{report: "✅ Success! Exported 1 registrations to 'Annual'."},
	}
	eng, err := New(Deps{
		Sessions:      h.sessions,
		Registrations: h.regs,
		Content:       h.content,
		Dispatcher:    h.out,
		Answerer:      h.answerer,
		Exporter:      h.exporter,
		Catalog:       catalog.Default(),
		Admins:        identity.NewAllowList([]string{"+" + adminNumber}),
		Now:           func() time.Time { return fixedNow },
		Spawn:         func(fn func()) { h.jobs = append(h.jobs, fn) },
	})
	require.NoError(t, err)
	h.eng = eng
	return h
}

// send delivers a typed message and returns the replies to that user.
func (h *harness) send(user, text string) []domain.Message {
	h.t.Helper()
	return h.deliver(domain.Inbound{
		UserID:  user,
		Kind:    domain.InboundText,
		Command: strings.ToLower(strings.TrimSpace(text)),
		Text:    text,
	})
}

// tap delivers a button or list selection.
func (h *harness) tap(user, id string) []domain.Message {
	h.t.Helper()
	return h.deliver(domain.Inbound{
		UserID:  user,
		Kind:    domain.InboundButton,
		Command: id,
		Text:    id,
	})
}

func (h *harness) deliver(in domain.Inbound) []domain.Message {
	h.t.Helper()
	n := h.out.count()
	require.NoError(h.t, h.eng.Handle(context.Background(), in))
	return h.out.since(n, in.UserID)
}

func (h *harness) state(user string) domain.State {
	h.t.Helper()
	sess, err := h.sessions.LoadSession(context.Background(), user)
	require.NoError(h.t, err)
	if sess == nil {
		return nil
	}
	return sess.State
}

func (h *harness) registration(user string) *domain.RegistrationSession {
	h.t.Helper()
	s, ok := h.state(user).(*domain.RegistrationSession)
	require.True(h.t, ok, "expected a registration session, got %#v", h.state(user))
	return s
}

func texts(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Body)
	}
	return out
}

func lastBody(msgs []domain.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Body
}
