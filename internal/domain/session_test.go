package domain

import (
	"errors"
	"testing"
)

func TestStateEnvelopeRoundTrip(t *testing.T) {
	states := []State{
		&LessonSession{Step: LessonAwaitingClass},
		&LessonSession{Step: LessonAwaitingQuestion, Class: "answer", Lesson: &Lesson{Title: "Faith"}},
		&HymnSession{Step: HymnAwaitingNumber, Book: "english"},
		&BibleSession{Step: BibleAwaitingPassage, Version: "kjv"},
		&StatusSession{Step: StatusAwaitingIdentifier, Event: EventYouths},
		&RegistrationSession{Step: RegEditNOKPhone, Event: EventAnnual, Data: RegistrationData{IDPassport: "ID123"}},
	}

	for _, st := range states {
		raw, err := MarshalState(st)
		if err != nil {
			t.Fatalf("%s/%s: marshal: %v", st.Mode(), st.StepName(), err)
		}
		got, err := UnmarshalState(raw)
		if err != nil {
			t.Fatalf("%s/%s: unmarshal: %v", st.Mode(), st.StepName(), err)
		}
		if got.Mode() != st.Mode() || got.StepName() != st.StepName() {
			t.Errorf("got %s/%s, want %s/%s", got.Mode(), got.StepName(), st.Mode(), st.StepName())
		}
	}
}

func TestStateRejectsImpossiblePairs(t *testing.T) {
	bad := []State{
		&HymnSession{Step: HymnAwaitingNumber},
		&LessonSession{Step: LessonAwaitingAction, Class: "answer"},
		&StatusSession{Step: StatusAwaitingIdentifier, Event: "winter"},
		&RegistrationSession{Step: RegAwaitingDOB, Event: EventYouths},
		&RegistrationSession{Step: "awaiting_shoe_size", Event: EventYouths, Data: RegistrationData{IDPassport: "X1"}},
		&BibleSession{Step: "awaiting_hymn_number", Version: "kjv"},
	}
	for _, st := range bad {
		if _, err := MarshalState(st); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("%s/%s: expected ErrInvalidSession, got %v", st.Mode(), st.StepName(), err)
		}
	}
}

func TestUnmarshalStateUnknownMode(t *testing.T) {
	for _, raw := range []string{
		`{"mode":"karaoke","state":{"step":"x"}}`,
		`{"mode":"hymnbook","state":{"step":"awaiting_passage"}}`,
		`not json`,
	} {
		if _, err := UnmarshalState([]byte(raw)); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("%s: expected ErrInvalidSession, got %v", raw, err)
		}
	}
	if _, err := MarshalState(nil); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("nil state: got %v", err)
	}
}

func TestRegistrationStepSets(t *testing.T) {
	if RegStep("awaiting_nothing").Valid() {
		t.Error("unknown step reported valid")
	}
	if got := (RegistrationData{FirstName: "Jane"}).FullName(); got != "Jane" {
		t.Errorf("FullName = %q", got)
	}
}
