package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/sundaybot/internal/catalog"
	"github.com/ashureev/sundaybot/internal/domain"
)

const user = "263771111111"

// fillAnnual walks an annual registration up to the confirmation step.
func fillAnnual(t *testing.T, h *harness, id string) {
	t.Helper()
	h.tap(user, "mode_camp_reg_annual")
	h.send(user, id)
	h.send(user, "Jane")
	h.send(user, "Doe")
	h.send(user, "01/01/2000")
	h.tap(user, "gender_female")
	h.send(user, "+263771234567")
	h.tap(user, "salvation_born_again")
	h.send(user, "2")
	h.tap(user, "no")
	h.send(user, "John Doe")
	h.send(user, "+263772222222")
	h.send(user, "07/12/2025")
	h.send(user, "21/12/2025")
	h.tap(user, "yes")
	h.tap(user, "dept_media")
	h.tap(user, "no")
	require.Equal(t, domain.RegAwaitingConfirmation, h.registration(user).Step)
}

func annualData(id string) domain.RegistrationData {
	return domain.RegistrationData{
		IDPassport:          id,
		FirstName:           "Jane",
		LastName:            "Doe",
		DOB:                 "01/01/2000",
		Age:                 25,
		Gender:              "Female",
		Phone:               "+263771234567",
		SalvationStatus:     "Born Again",
		Dependents:          "2",
		IsWorker:            "No",
		WorkerType:          domain.NotApplicable,
		VolunteerStatus:     "Yes",
		VolunteerDepartment: "Media",
		TransportAssistance: "No",
		NOKName:             "John Doe",
		NOKPhone:            "+263772222222",
		CampStart:           "07/12/2025",
		CampEnd:             "21/12/2025",
	}
}

func TestRegistrationCompletesAndRejectsDuplicate(t *testing.T) {
	h := newHarness(t)

	fillAnnual(t, h, "ID123")
	assert.Equal(t, annualData("ID123"), h.registration(user).Data)

	msgs := h.tap(user, "reg_confirm")
	assert.Contains(t, lastBody(msgs), "Registration Complete")
	assert.Nil(t, h.state(user))
	require.Equal(t, 1, h.regs.creates)

	stored := h.regs.records[regKey(domain.EventAnnual, "ID123")]
	require.NotNil(t, stored)
	assert.Equal(t, fixedNow, stored.CreatedAt)

	h.tap(user, "mode_camp_reg_annual")
	msgs = h.send(user, "id123")
	assert.Contains(t, lastBody(msgs), "already registered under the name *Jane Doe*")
	assert.Nil(t, h.state(user))
	assert.Equal(t, 1, h.regs.creates)
	assert.Equal(t, annualData("ID123"), h.regs.records[regKey(domain.EventAnnual, "ID123")].Data)
}

func TestRegistrationYouthsSkipsDependents(t *testing.T) {
	h := newHarness(t)

	h.tap(user, "mode_camp_reg_youths")
	h.send(user, "AB123456")
	h.send(user, "Tariro")
	h.send(user, "Moyo")
	h.send(user, "5/3/2008")
	h.tap(user, "gender_male")
	h.send(user, "+263 77 123 4567")
	h.tap(user, "salvation_not_born_again")

	s := h.registration(user)
	assert.Equal(t, domain.RegAwaitingIsWorker, s.Step)
	assert.Equal(t, "0", s.Data.Dependents)
	assert.Equal(t, "05/03/2008", s.Data.DOB)
	assert.Equal(t, 17, s.Data.Age)
	assert.Equal(t, "+263771234567", s.Data.Phone)
	assert.Equal(t, "Not Born Again", s.Data.SalvationStatus)
}

func TestRegistrationWorkerBranch(t *testing.T) {
	h := newHarness(t)

	h.tap(user, "mode_camp_reg_youths")
	h.send(user, "AB123456")
	h.send(user, "Tariro")
	h.send(user, "Moyo")
	h.send(user, "05/03/2008")
	h.tap(user, "gender_male")
	h.send(user, "+263771234567")
	h.tap(user, "salvation_born_again")

	msgs := h.tap(user, "yes")
	require.Equal(t, domain.RegAwaitingWorkerType, h.registration(user).Step)
	assert.Equal(t, domain.MessageList, msgs[len(msgs)-1].Kind)

	msgs = h.tap(user, "worker_bishop")
	assert.Equal(t, domain.RegAwaitingWorkerType, h.registration(user).Step)
	assert.Contains(t, texts(msgs), "Invalid worker type selection. Please use the list.")

	h.tap(user, "worker_deacon")
	s := h.registration(user)
	assert.Equal(t, domain.RegAwaitingNOKName, s.Step)
	assert.Equal(t, "Deacon", s.Data.WorkerType)
}

func TestVolunteerNoSkipsDepartment(t *testing.T) {
	h := newHarness(t)
	fillAnnual(t, h, "ID200")

	h.tap(user, "reg_edit")
	h.tap(user, "edit_volunteer")
	h.tap(user, "no")

	s := h.registration(user)
	assert.Equal(t, domain.RegAwaitingConfirmation, s.Step)
	assert.Equal(t, "No", s.Data.VolunteerStatus)
	assert.Equal(t, domain.NotApplicable, s.Data.VolunteerDepartment)

	h.tap(user, "reg_restart")
	h.send(user, "ID201")
	h.send(user, "Jane")
	h.send(user, "Doe")
	h.send(user, "01/01/2000")
	h.tap(user, "gender_female")
	h.send(user, "+263771234567")
	h.tap(user, "salvation_born_again")
	h.send(user, "0")
	h.tap(user, "no")
	h.send(user, "John Doe")
	h.send(user, "+263772222222")
	h.send(user, "07/12/2025")
	h.send(user, "08/12/2025")
	h.tap(user, "no")

	s = h.registration(user)
	assert.Equal(t, domain.RegAwaitingTransport, s.Step)
	assert.Equal(t, domain.NotApplicable, s.Data.VolunteerDepartment)
}

func TestValidationRejectionKeepsState(t *testing.T) {
	h := newHarness(t)
	h.tap(user, "mode_camp_reg_annual")

	msgs := h.send(user, "#")
	assert.Equal(t, domain.RegAwaitingID, h.registration(user).Step)
	assert.Contains(t, lastBody(msgs), "valid ID or Passport number")

	h.send(user, "ID300")
	h.send(user, "Jane")
	h.send(user, "Doe")

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"unparseable date", "31/02/2000", "Invalid date format"},
		{"future date", "01/01/2030", "Invalid date format"},
		{"words", "yesterday", "Invalid date format"},
	}
	for _, tc := range cases {
		before := *h.registration(user)
		msgs := h.send(user, tc.input)
		assert.Equal(t, before, *h.registration(user), tc.name)
		assert.Contains(t, lastBody(msgs), tc.want, tc.name)
	}

	h.send(user, "01/01/2000")
	h.send(user, "female")
	assert.Equal(t, domain.RegAwaitingPhone, h.registration(user).Step, "typed gender is accepted")

	before := *h.registration(user)
	msgs = h.send(user, "0771234567")
	assert.Equal(t, before, *h.registration(user))
	assert.Contains(t, texts(msgs), "Invalid phone number format. Please include country code, e.g., +263771234567.")

	h.send(user, "+263771234567")
	msgs = h.send(user, "maybe")
	assert.Equal(t, domain.RegAwaitingSalvation, h.registration(user).Step)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageButtons, msgs[1].Kind, "choice steps repeat their buttons")

	h.tap(user, "salvation_born_again")
	before = *h.registration(user)
	h.send(user, "two")
	h.send(user, "99")
	assert.Equal(t, before, *h.registration(user))
}

func TestEndDateBeforeStartIsRejected(t *testing.T) {
	h := newHarness(t)
	fillAnnual(t, h, "ID400")

	h.tap(user, "reg_edit")
	h.tap(user, "edit_dates")
	h.send(user, "10/12/2025")

	msgs := h.send(user, "09/12/2025")
	s := h.registration(user)
	assert.Equal(t, domain.RegEditEndDate, s.Step)
	assert.Contains(t, lastBody(msgs), "cannot be before your arrival date (10/12/2025)")

	h.send(user, "10/12/2025")
	s = h.registration(user)
	assert.Equal(t, domain.RegAwaitingConfirmation, s.Step)
	assert.Equal(t, "10/12/2025", s.Data.CampStart)
	assert.Equal(t, "10/12/2025", s.Data.CampEnd)
}

func TestEditReturnsToConfirmationWithOnlyThatField(t *testing.T) {
	cases := []struct {
		name   string
		inputs []string
		change func(d *domain.RegistrationData)
	}{
		{
			name:   "name",
			inputs: []string{"edit_name", "Mary Ann Smith"},
			change: func(d *domain.RegistrationData) { d.FirstName, d.LastName = "Mary", "Ann Smith" },
		},
		{
			name:   "phone",
			inputs: []string{"edit_phone", "+263779999999"},
			change: func(d *domain.RegistrationData) { d.Phone = "+263779999999" },
		},
		{
			name:   "next of kin",
			inputs: []string{"edit_nok", "Ruth Doe", "+263775555555"},
			change: func(d *domain.RegistrationData) { d.NOKName, d.NOKPhone = "Ruth Doe", "+263775555555" },
		},
		{
			name:   "volunteer department",
			inputs: []string{"edit_volunteer", "yes", "dept_kitchen"},
			change: func(d *domain.RegistrationData) { d.VolunteerDepartment = "Kitchen Work" },
		},
		{
			name:   "volunteer declined",
			inputs: []string{"edit_volunteer", "no"},
			change: func(d *domain.RegistrationData) {
				d.VolunteerStatus, d.VolunteerDepartment = "No", domain.NotApplicable
			},
		},
		{
			name:   "dates",
			inputs: []string{"edit_dates", "08/12/2025", "20/12/2025"},
			change: func(d *domain.RegistrationData) { d.CampStart, d.CampEnd = "08/12/2025", "20/12/2025" },
		},
		{
			name:   "back",
			inputs: []string{"edit_back"},
			change: func(*domain.RegistrationData) {},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			fillAnnual(t, h, "ID500")
			want := h.registration(user).Data
			tc.change(&want)

			h.tap(user, "reg_edit")
			require.Equal(t, domain.RegAwaitingFieldToEdit, h.registration(user).Step)

			var msgs []domain.Message
			for _, in := range tc.inputs {
				msgs = h.send(user, in)
			}

			s := h.registration(user)
			assert.Equal(t, domain.RegAwaitingConfirmation, s.Step)
			assert.Equal(t, want, s.Data)
			require.NotEmpty(t, msgs)
			assert.Equal(t, []string{"reg_confirm", "reg_edit", "reg_restart"}, msgs[len(msgs)-1].OptionIDs())
		})
	}
}

func TestRestartClearsData(t *testing.T) {
	h := newHarness(t)
	fillAnnual(t, h, "ID600")

	msgs := h.tap(user, "reg_restart")
	s := h.registration(user)
	assert.Equal(t, domain.RegAwaitingID, s.Step)
	assert.Equal(t, domain.RegistrationData{}, s.Data)
	assert.Equal(t, domain.EventAnnual, s.Event)
	assert.Equal(t, []string{
		"Okay, let's restart your registration.",
		"What is your *ID or Passport number*?",
	}, texts(msgs))
}

func TestCommitFailureDeletesSession(t *testing.T) {
	h := newHarness(t)
	fillAnnual(t, h, "ID700")
	h.regs.createErr = errors.New("disk full")

	msgs := h.tap(user, "reg_confirm")
	assert.Equal(t, "There was an error saving your registration. Please try again later or contact an administrator.", lastBody(msgs))
	assert.Nil(t, h.state(user))
	assert.Equal(t, 1, h.regs.creates)
}

func TestCommitConflictDeletesSession(t *testing.T) {
	h := newHarness(t)
	fillAnnual(t, h, "ID701")

	other := annualData("ID701")
	other.FirstName = "Someone"
	h.regs.records[regKey(domain.EventAnnual, "ID701")] = &domain.Registration{Event: domain.EventAnnual, Data: other}

	msgs := h.tap(user, "reg_confirm")
	assert.Contains(t, lastBody(msgs), "registered by someone else")
	assert.Nil(t, h.state(user))
	assert.Equal(t, "Someone", h.regs.records[regKey(domain.EventAnnual, "ID701")].Data.FirstName)
}

func TestDuplicateCheckErrorEndsSession(t *testing.T) {
	h := newHarness(t)
	h.regs.getErr = errors.New("connection reset")

	h.tap(user, "mode_camp_reg_youths")
	msgs := h.send(user, "ID800")
	assert.Equal(t, []string{"I'm having trouble checking for duplicates right now. Please contact an admin."}, texts(msgs))
	assert.Nil(t, h.state(user))
}

func TestEveryRegistrationStepIsDefined(t *testing.T) {
	f := newRegistrationFlow(catalog.Default(), func() time.Time { return fixedNow })
	for _, step := range domain.RegSteps {
		def, ok := f.steps[step]
		require.True(t, ok, "step %s has no definition", step)
		require.NotNil(t, def.handle, "step %s has no handler", step)
		s := &domain.RegistrationSession{Step: step, Event: domain.EventAnnual, Data: annualData("ID900")}
		assert.NotEmpty(t, f.Prompt(s), "step %s has no prompt", step)
	}
	assert.Len(t, f.steps, len(domain.RegSteps))
}

func TestRegistrationIgnoresBibleShortcut(t *testing.T) {
	h := newHarness(t)
	h.tap(user, "mode_camp_reg_annual")
	h.send(user, "ID901")
	h.send(user, "Jane")
	h.send(user, "Doe")

	msgs := h.send(user, "bible John 3:16")
	assert.Contains(t, lastBody(msgs), "Invalid date format")
	assert.Equal(t, domain.RegAwaitingDOB, h.registration(user).Step)
}
