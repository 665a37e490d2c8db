// Package engine runs the SundayBot conversation. Each inbound message is
// routed through the user's active mode, the resulting session is persisted
// or deleted, and only then are the replies dispatched.
package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/sundaybot/internal/catalog"
	"github.com/ashureev/sundaybot/internal/domain"
)

const (
	lockStripes       = 64
	defaultJobTimeout = 5 * time.Minute
)

const (
	msgTechnical   = "Sorry, the bot is experiencing technical difficulties. Please try again later."
	msgSessionLost = "Sorry, I lost track of our conversation. Let's start again from the main menu."
	msgYesNo       = "Invalid response. Please reply 'Yes' or 'No'."
)

// outcome is the result of routing one message. A nil next deletes the
// session unless keep is set, in which case storage is not touched.
type outcome struct {
	next domain.State
	msgs []domain.Message
	keep bool
}

func stay(st domain.State, msgs ...domain.Message) outcome {
	return outcome{next: st, msgs: msgs}
}

func end(msgs ...domain.Message) outcome {
	return outcome{msgs: msgs}
}

func untouched(msgs ...domain.Message) outcome {
	return outcome{msgs: msgs, keep: true}
}

// Engine is the session dialogue engine. It is safe for concurrent use;
// messages from the same user are handled one at a time.
type Engine struct {
	deps   Deps
	cat    *catalog.Catalog
	reg    *registrationFlow
	logger *slog.Logger
	now    func() time.Time
	spawn  func(func())

	locks [lockStripes]sync.Mutex
}

// New builds an Engine from its collaborators.
func New(d Deps) (*Engine, error) {
	if d.Sessions == nil || d.Registrations == nil || d.Content == nil || d.Dispatcher == nil {
		return nil, errors.New("engine: sessions, registrations, content and dispatcher are required")
	}
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Spawn == nil {
		d.Spawn = func(fn func()) { go fn() }
	}
	if d.JobTimeout <= 0 {
		d.JobTimeout = defaultJobTimeout
	}

	return &Engine{
		deps:   d,
		cat:    d.Catalog,
		reg:    newRegistrationFlow(d.Catalog, d.Now),
		logger: d.Logger.With("component", "engine"),
		now:    d.Now,
		spawn:  d.Spawn,
	}, nil
}

// Handle processes one inbound message. Errors are returned for logging
// only; the user has already been told about them.
func (e *Engine) Handle(ctx context.Context, in domain.Inbound) error {
	if in.UserID == "" {
		return errors.New("engine: inbound message without user id")
	}

	mu := e.lock(in.UserID)
	mu.Lock()
	defer mu.Unlock()

	logger := e.logger.With("user_id", in.UserID, "message_id", in.MessageID)

	sess, err := e.deps.Sessions.LoadSession(ctx, in.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidSession) {
			logger.Error("Failed to load session", "error", err)
			e.send(ctx, in.UserID, []domain.Message{domain.Text(msgTechnical)})
			return fmt.Errorf("load session: %w", err)
		}
		logger.Warn("Discarding unreadable session", "error", err)
		if err := e.deps.Sessions.DeleteSession(ctx, in.UserID); err != nil {
			logger.Error("Failed to delete unreadable session", "error", err)
		}
		sess = nil
	}

	var st domain.State
	if sess != nil {
		st = sess.State
		logger = logger.With("mode", st.Mode(), "step", st.StepName())
	}
	logger.Debug("Handling message", "kind", in.Kind)

	out := e.route(ctx, st, in)
	return e.apply(ctx, logger, in.UserID, sess, out)
}

func (e *Engine) route(ctx context.Context, st domain.State, in domain.Inbound) outcome {
	if fields := strings.Fields(in.Command); len(fields) > 0 && fields[0] == "export" && e.deps.Admins.Contains(in.UserID) {
		return untouched(e.startExport(in))
	}

	inRegistration := st != nil && st.Mode() == domain.ModeRegistration
	if ref, ok := bibleShortcut(in.Text); ok && !inRegistration {
		return untouched(e.passageShortcut(ctx, in.UserID, ref)...)
	}

	switch in.Command {
	case "reset", "menu", "main menu":
		return end(e.menu())
	}

	if out, ok := e.selectMode(in.Command); ok {
		return out
	}

	if st == nil {
		return untouched(e.menu())
	}
	if in.Command == "" {
		return stay(st, e.prompt(st)...)
	}

	switch s := st.(type) {
	case *domain.LessonSession:
		return e.lessons(ctx, s, in)
	case *domain.HymnSession:
		return e.hymnbook(ctx, s, in)
	case *domain.BibleSession:
		return e.bible(ctx, s, in)
	case *domain.StatusSession:
		return e.status(ctx, s, in)
	case *domain.RegistrationSession:
		return e.registration(ctx, s, in)
	}
	return end(domain.Text(msgSessionLost), e.menu())
}

// selectMode enters a mode from any state.
func (e *Engine) selectMode(command string) (outcome, bool) {
	switch command {
	case "mode_lessons":
		return stay(&domain.LessonSession{Step: domain.LessonAwaitingClass}, e.classList()), true
	case "mode_hymnbook":
		return stay(&domain.HymnSession{Step: domain.HymnAwaitingBook}, e.hymnbookList()), true
	case "mode_bible":
		return stay(&domain.BibleSession{Step: domain.BibleAwaitingVersion}, e.bibleList()), true
	case "mode_check_status":
		return stay(&domain.StatusSession{Step: domain.StatusAwaitingEvent}, e.statusEvents()), true
	}

	if key, ok := strings.CutPrefix(command, "mode_camp_reg_"); ok {
		if ev, ok := domain.ParseEventType(key); ok {
			s, msgs := e.reg.Start(ev)
			return stay(s, msgs...), true
		}
	}
	return outcome{}, false
}

// prompt re-asks the current step of st.
func (e *Engine) prompt(st domain.State) []domain.Message {
	switch s := st.(type) {
	case *domain.LessonSession:
		switch s.Step {
		case domain.LessonAwaitingAction:
			return []domain.Message{e.lessonActions(s)}
		case domain.LessonAwaitingQuestion:
			return []domain.Message{domain.Text(msgAskQuestion)}
		}
		return []domain.Message{e.classList()}
	case *domain.HymnSession:
		if s.Step == domain.HymnAwaitingNumber {
			return []domain.Message{domain.Text("Please enter a hymn number.")}
		}
		return []domain.Message{e.hymnbookList()}
	case *domain.BibleSession:
		if s.Step == domain.BibleAwaitingPassage {
			return []domain.Message{domain.Text("Please enter a passage (e.g., John 3:16).")}
		}
		return []domain.Message{e.bibleList()}
	case *domain.StatusSession:
		if s.Step == domain.StatusAwaitingIdentifier {
			return []domain.Message{domain.Text(e.statusIdentifierPrompt(s.Event))}
		}
		return []domain.Message{e.statusEvents()}
	case *domain.RegistrationSession:
		return e.reg.Prompt(s)
	}
	return []domain.Message{e.menu()}
}

func (e *Engine) registration(ctx context.Context, s *domain.RegistrationSession, in domain.Inbound) outcome {
	res := e.reg.Step(s, in)
	logger := e.logger.With("user_id", in.UserID, "event", s.Event)

	switch res.effect {
	case effectCheckExisting:
		existing, err := e.deps.Registrations.GetRegistration(ctx, s.Event, res.next.Data.IDPassport)
		if err != nil {
			logger.Error("Duplicate check failed", "error", err)
		} else if existing != nil {
			logger.Info("Registration already exists")
		}
		res = e.reg.AfterExistenceCheck(res, existing, err)
	case effectCommit:
		err := e.deps.Registrations.CreateRegistration(ctx, res.record)
		if err != nil {
			logger.Error("Failed to save registration", "error", err)
		} else {
			logger.Info("Registration created", "created_at", res.record.CreatedAt)
		}
		res = e.reg.AfterCommit(res.record, err)
	}

	// Converting a nil *RegistrationSession would yield a non-nil State.
	if res.next == nil {
		return end(res.msgs...)
	}
	return stay(res.next, res.msgs...)
}

// apply persists the outcome, then sends its messages. A failed save
// replaces the replies with the technical difficulty message so the user
// is never shown a step that was not stored.
func (e *Engine) apply(ctx context.Context, logger *slog.Logger, userID string, prev *domain.Session, out outcome) error {
	msgs := out.msgs
	var err error

	switch {
	case out.keep:
	case out.next != nil:
		sess := &domain.Session{UserID: userID, State: out.next}
		if prev != nil {
			sess.CreatedAt = prev.CreatedAt
		}
		if err = e.deps.Sessions.SaveSession(ctx, sess); err != nil {
			logger.Error("Failed to save session", "next_mode", out.next.Mode(), "next_step", out.next.StepName(), "error", err)
			msgs = []domain.Message{domain.Text(msgTechnical)}
			err = fmt.Errorf("save session: %w", err)
		}
	default:
		if delErr := e.deps.Sessions.DeleteSession(ctx, userID); delErr != nil {
			logger.Error("Failed to delete session", "error", delErr)
		}
	}

	e.send(ctx, userID, msgs)
	return err
}

// send delivers messages in order. Delivery failures are logged and do not
// affect the stored session.
func (e *Engine) send(ctx context.Context, userID string, msgs []domain.Message) {
	for _, m := range msgs {
		if err := e.deps.Dispatcher.Send(ctx, userID, m); err != nil {
			e.logger.Warn("Failed to send message", "user_id", userID, "kind", m.Kind, "error", err)
		}
	}
}

func (e *Engine) lock(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &e.locks[h.Sum32()%lockStripes]
}
