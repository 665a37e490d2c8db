package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidSession is returned when a persisted session does not decode
// into a known (mode, step) pair.
var ErrInvalidSession = errors.New("invalid session")

// Mode is the top-level conversation a user is in.
type Mode string

const (
	ModeLessons      Mode = "lessons"
	ModeHymnbook     Mode = "hymnbook"
	ModeBible        Mode = "bible"
	ModeRegistration Mode = "camp_registration"
	ModeCheckStatus  Mode = "check_status"
)

// State is the mode-specific part of a session. Each implementation
// carries only the data its mode needs, so a step of one mode can never
// be paired with another mode's data.
type State interface {
	Mode() Mode
	StepName() string
	Validate() error
}

// Session is the durable record of where a user's conversation stands.
// A user with no Session is at the main menu.
type Session struct {
	UserID    string
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Mode returns the session's mode.
func (s *Session) Mode() Mode {
	return s.State.Mode()
}

// Step returns the session's current step name.
func (s *Session) Step() string {
	return s.State.StepName()
}

// LessonStep enumerates the lessons flow.
type LessonStep string

const (
	LessonAwaitingClass    LessonStep = "awaiting_class_choice"
	LessonAwaitingAction   LessonStep = "awaiting_lesson_action"
	LessonAwaitingQuestion LessonStep = "awaiting_ai_question"
)

// LessonSteps is the finite step set of ModeLessons.
var LessonSteps = []LessonStep{LessonAwaitingClass, LessonAwaitingAction, LessonAwaitingQuestion}

// LessonSession tracks a user browsing this week's lesson.
type LessonSession struct {
	Step   LessonStep `json:"step"`
	Class  string     `json:"class,omitempty"`
	Lesson *Lesson    `json:"lesson,omitempty"`
}

func (*LessonSession) Mode() Mode { return ModeLessons }
func (s *LessonSession) StepName() string { return string(s.Step) }

// Validate checks the step and that a cached lesson exists past class selection.
func (s *LessonSession) Validate() error {
	if !slices.Contains(LessonSteps, s.Step) {
		return fmt.Errorf("%w: lessons step %q", ErrInvalidSession, s.Step)
	}
	if s.Step != LessonAwaitingClass && (s.Class == "" || s.Lesson == nil) {
		return fmt.Errorf("%w: lessons step %q without a lesson", ErrInvalidSession, s.Step)
	}
	return nil
}

// HymnStep enumerates the hymnbook flow.
type HymnStep string

const (
	HymnAwaitingBook   HymnStep = "awaiting_hymnbook_choice"
	HymnAwaitingNumber HymnStep = "awaiting_hymn_number"
)

// HymnSteps is the finite step set of ModeHymnbook.
var HymnSteps = []HymnStep{HymnAwaitingBook, HymnAwaitingNumber}

// HymnSession tracks hymn lookups.
type HymnSession struct {
	Step HymnStep `json:"step"`
	Book string   `json:"book,omitempty"`
}

func (*HymnSession) Mode() Mode { return ModeHymnbook }
func (s *HymnSession) StepName() string { return string(s.Step) }

func (s *HymnSession) Validate() error {
	if !slices.Contains(HymnSteps, s.Step) {
		return fmt.Errorf("%w: hymnbook step %q", ErrInvalidSession, s.Step)
	}
	if s.Step == HymnAwaitingNumber && s.Book == "" {
		return fmt.Errorf("%w: hymn number without a hymnbook", ErrInvalidSession)
	}
	return nil
}

// BibleStep enumerates the scripture flow.
type BibleStep string

const (
	BibleAwaitingVersion BibleStep = "awaiting_bible_choice"
	BibleAwaitingPassage BibleStep = "awaiting_passage"
)

// BibleSteps is the finite step set of ModeBible.
var BibleSteps = []BibleStep{BibleAwaitingVersion, BibleAwaitingPassage}

// BibleSession tracks scripture lookups.
type BibleSession struct {
	Step    BibleStep `json:"step"`
	Version string    `json:"version,omitempty"`
}

func (*BibleSession) Mode() Mode { return ModeBible }
func (s *BibleSession) StepName() string { return string(s.Step) }

func (s *BibleSession) Validate() error {
	if !slices.Contains(BibleSteps, s.Step) {
		return fmt.Errorf("%w: bible step %q", ErrInvalidSession, s.Step)
	}
	if s.Step == BibleAwaitingPassage && s.Version == "" {
		return fmt.Errorf("%w: passage without a bible version", ErrInvalidSession)
	}
	return nil
}

// StatusStep enumerates the registration status check.
type StatusStep string

const (
	StatusAwaitingEvent      StatusStep = "awaiting_camp_type"
	StatusAwaitingIdentifier StatusStep = "awaiting_id_for_check"
)

// StatusSteps is the finite step set of ModeCheckStatus.
var StatusSteps = []StatusStep{StatusAwaitingEvent, StatusAwaitingIdentifier}

// StatusSession tracks a registration status check.
type StatusSession struct {
	Step  StatusStep `json:"step"`
	Event EventType  `json:"event,omitempty"`
}

func (*StatusSession) Mode() Mode { return ModeCheckStatus }
func (s *StatusSession) StepName() string { return string(s.Step) }

func (s *StatusSession) Validate() error {
	if !slices.Contains(StatusSteps, s.Step) {
		return fmt.Errorf("%w: status step %q", ErrInvalidSession, s.Step)
	}
	if s.Step == StatusAwaitingIdentifier && !s.Event.Valid() {
		return fmt.Errorf("%w: status check without an event", ErrInvalidSession)
	}
	return nil
}

// RegistrationSession tracks a registration in progress.
type RegistrationSession struct {
	Step  RegStep          `json:"step"`
	Event EventType        `json:"event"`
	Data  RegistrationData `json:"data"`
}

func (*RegistrationSession) Mode() Mode { return ModeRegistration }
func (s *RegistrationSession) StepName() string { return string(s.Step) }

func (s *RegistrationSession) Validate() error {
	if !s.Step.Valid() {
		return fmt.Errorf("%w: registration step %q", ErrInvalidSession, s.Step)
	}
	if !s.Event.Valid() {
		return fmt.Errorf("%w: registration event %q", ErrInvalidSession, s.Event)
	}
	if s.Step != RegAwaitingID && s.Data.IDPassport == "" {
		return fmt.Errorf("%w: registration step %q without an identifier", ErrInvalidSession, s.Step)
	}
	return nil
}

// envelope is the persisted layout of a Session's state.
type envelope struct {
	Mode  Mode            `json:"mode"`
	State json.RawMessage `json:"state"`
}

// MarshalState encodes a state with its mode tag.
func MarshalState(st State) ([]byte, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvalidSession)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal %s state: %w", st.Mode(), err)
	}
	return json.Marshal(envelope{Mode: st.Mode(), State: raw})
}

// UnmarshalState decodes a state written by MarshalState and validates it.
func UnmarshalState(data []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	var st State
	switch env.Mode {
	case ModeLessons:
		st = &LessonSession{}
	case ModeHymnbook:
		st = &HymnSession{}
	case ModeBible:
		st = &BibleSession{}
	case ModeRegistration:
		st = &RegistrationSession{}
	case ModeCheckStatus:
		st = &StatusSession{}
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidSession, env.Mode)
	}

	if err := json.Unmarshal(env.State, st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return st, nil
}
