package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/sundaybot/internal/catalog"
	"github.com/ashureev/sundaybot/internal/domain"
	"github.com/ashureev/sundaybot/internal/store"
)

// regEffect is the external call a registration step asks the engine to make.
type regEffect int

const (
	effectNone regEffect = iota
	effectCheckExisting
	effectCommit
)

const maxDependents = 20

// regResult is the outcome of one registration step. A nil next ends the
// flow and deletes the session.
type regResult struct {
	next   *domain.RegistrationSession
	msgs   []domain.Message
	effect regEffect
	record *domain.Registration
}

// stepDef binds a step to its prompt and input handler. Handlers receive a
// copy of the session and never touch storage or the network.
type stepDef struct {
	prompt func(s *domain.RegistrationSession) []domain.Message
	handle func(s domain.RegistrationSession, in domain.Inbound) regResult
}

// registrationFlow is the registration transition table.
type registrationFlow struct {
	cat   *catalog.Catalog
	now   func() time.Time
	steps map[domain.RegStep]stepDef
}

func newRegistrationFlow(cat *catalog.Catalog, now func() time.Time) *registrationFlow {
	f := &registrationFlow{cat: cat, now: now}

	setPhone := func(d *domain.RegistrationData, v string) { d.Phone = v }
	setNOKPhone := func(d *domain.RegistrationData, v string) { d.NOKPhone = v }

	f.steps = map[domain.RegStep]stepDef{
		domain.RegAwaitingID: {
			prompt: f.text("What is your *ID or Passport number*?"),
			handle: f.onIdentifier,
		},
		domain.RegAwaitingFirstName: {
			prompt: f.text("What is your *first name*?"),
			handle: f.nameStep(func(d *domain.RegistrationData, v string) { d.FirstName = v }, domain.RegAwaitingLastName),
		},
		domain.RegAwaitingLastName: {
			prompt: f.text("And your *last name*?"),
			handle: f.nameStep(func(d *domain.RegistrationData, v string) { d.LastName = v }, domain.RegAwaitingDOB),
		},
		domain.RegAwaitingDOB: {
			prompt: f.text("Got it. What is your *date of birth*? (DD/MM/YYYY)"),
			handle: f.onDOB,
		},
		domain.RegAwaitingGender: {
			prompt: f.buttons("Please select your gender:",
				domain.Option{ID: "gender_male", Title: "Male"},
				domain.Option{ID: "gender_female", Title: "Female"}),
			handle: f.onGender,
		},
		domain.RegAwaitingPhone: {
			prompt: f.text("What is your *phone number* (e.g., +263771234567)?"),
			handle: f.phoneStep(setPhone, domain.RegAwaitingSalvation),
		},
		domain.RegAwaitingSalvation: {
			prompt: f.buttons("What is your *salvation status*?",
				domain.Option{ID: "salvation_born_again", Title: "Born Again"},
				domain.Option{ID: "salvation_not_born_again", Title: "Not Born Again"}),
			handle: f.onSalvation,
		},
		domain.RegAwaitingDependents: {
			prompt: f.text("How many *dependents* (children or family under your care) are you registering? Reply with a number, e.g., 0."),
			handle: f.onDependents,
		},
		domain.RegAwaitingIsWorker: {
			prompt: f.yesNo("Are you a *worker* (Minister, Deacon, Sunday school teacher)?"),
			handle: f.onIsWorker,
		},
		domain.RegAwaitingWorkerType: {
			prompt: f.workerTypes,
			handle: f.onWorkerType,
		},
		domain.RegAwaitingNOKName: {
			prompt: f.text("What is the *full name of your next of kin*?"),
			handle: f.nameStep(func(d *domain.RegistrationData, v string) { d.NOKName = v }, domain.RegAwaitingNOKPhone),
		},
		domain.RegAwaitingNOKPhone: {
			prompt: f.text("What is your *next of kin's phone number* (e.g., +263771234567)?"),
			handle: f.phoneStep(setNOKPhone, domain.RegAwaitingStartDate),
		},
		domain.RegAwaitingStartDate: {
			prompt: f.text("What *date do you plan to arrive* at the camp? (DD/MM/YYYY)"),
			handle: f.startDateStep(domain.RegAwaitingEndDate),
		},
		domain.RegAwaitingEndDate: {
			prompt: f.text("What *date do you plan to leave* the camp? (DD/MM/YYYY)"),
			handle: f.endDateStep(domain.RegAwaitingVolunteer),
		},
		domain.RegAwaitingVolunteer: {
			prompt: f.yesNo("Do you wish to *volunteer* for any department during the camp?"),
			handle: f.volunteerStep(domain.RegAwaitingDepartment, domain.RegAwaitingTransport),
		},
		domain.RegAwaitingDepartment: {
			prompt: f.departments,
			handle: f.departmentStep(domain.RegAwaitingTransport),
		},
		domain.RegAwaitingTransport: {
			prompt: f.yesNo("Do you need *transport assistance* upon arrival at the camp?"),
			handle: f.onTransport,
		},
		domain.RegAwaitingConfirmation: {
			prompt: f.confirmation,
			handle: f.onConfirmation,
		},
		domain.RegAwaitingFieldToEdit: {
			prompt: f.editMenu,
			handle: f.onFieldToEdit,
		},
		domain.RegEditName: {
			prompt: f.text("Please enter your *full name* (first and last name)."),
			handle: f.onEditName,
		},
		domain.RegEditPhone: {
			prompt: f.text("What is your new *phone number* (e.g., +263771234567)?"),
			handle: f.phoneStep(setPhone, domain.RegAwaitingConfirmation),
		},
		domain.RegEditNOKName: {
			prompt: f.text("What is the *full name of your next of kin*?"),
			handle: f.nameStep(func(d *domain.RegistrationData, v string) { d.NOKName = v }, domain.RegEditNOKPhone),
		},
		domain.RegEditNOKPhone: {
			prompt: f.text("What is your *next of kin's phone number* (e.g., +263771234567)?"),
			handle: f.phoneStep(setNOKPhone, domain.RegAwaitingConfirmation),
		},
		domain.RegEditVolunteer: {
			prompt: f.yesNo("Do you wish to *volunteer* for any department during the camp?"),
			handle: f.volunteerStep(domain.RegEditDepartment, domain.RegAwaitingConfirmation),
		},
		domain.RegEditDepartment: {
			prompt: f.departments,
			handle: f.departmentStep(domain.RegAwaitingConfirmation),
		},
		domain.RegEditStartDate: {
			prompt: f.text("What *date do you plan to arrive* at the camp? (DD/MM/YYYY)"),
			handle: f.startDateStep(domain.RegEditEndDate),
		},
		domain.RegEditEndDate: {
			prompt: f.text("What *date do you plan to leave* the camp? (DD/MM/YYYY)"),
			handle: f.endDateStep(domain.RegAwaitingConfirmation),
		},
	}
	return f
}

// Start opens a registration for event.
func (f *registrationFlow) Start(event domain.EventType) (*domain.RegistrationSession, []domain.Message) {
	s := &domain.RegistrationSession{Step: domain.RegAwaitingID, Event: event}
	intro := domain.Text(fmt.Sprintf("🏕️ *%s Registration*\n\nLet's get you registered.", f.cat.EventName(event)))
	return s, append([]domain.Message{intro}, f.Prompt(s)...)
}

// Prompt returns the messages that ask for the session's current step.
func (f *registrationFlow) Prompt(s *domain.RegistrationSession) []domain.Message {
	def, ok := f.steps[s.Step]
	if !ok {
		return nil
	}
	return def.prompt(s)
}

// Step applies one inbound message to the session.
func (f *registrationFlow) Step(s *domain.RegistrationSession, in domain.Inbound) regResult {
	def, ok := f.steps[s.Step]
	if !ok {
		return regResult{msgs: []domain.Message{domain.Text(msgSessionLost)}}
	}
	return def.handle(*s, in)
}

// AfterExistenceCheck resolves the identifier step once the commit sink
// has been consulted.
func (f *registrationFlow) AfterExistenceCheck(res regResult, existing *domain.Registration, err error) regResult {
	switch {
	case err != nil:
		return regResult{msgs: []domain.Message{domain.Text(
			"I'm having trouble checking for duplicates right now. Please contact an admin.")}}
	case existing != nil:
		return regResult{msgs: []domain.Message{domain.Text(fmt.Sprintf(
			"It looks like you are already registered under the name *%s* with this ID. No need to register again!\n\nReturning to the main menu.",
			existing.Data.FullName()))}}
	}
	res.effect = effectNone
	return res
}

// AfterCommit reports the outcome of the create. The session ends either way.
func (f *registrationFlow) AfterCommit(rec *domain.Registration, err error) regResult {
	var text string
	switch {
	case err == nil:
		text = fmt.Sprintf("🎉 *Registration Complete!* 🎉\n\nThank you for registering for the *%s*. We look forward to seeing you at camp!\n\nReturning to the main menu.",
			f.cat.EventName(rec.Event))
	case errors.Is(err, store.ErrConflict):
		text = "It looks like this ID was registered by someone else while you were filling in the form, so your details were not saved. Please contact an administrator.\n\nReturning to the main menu."
	default:
		text = "There was an error saving your registration. Please try again later or contact an administrator."
	}
	return regResult{msgs: []domain.Message{domain.Text(text)}}
}

func (f *registrationFlow) goTo(s domain.RegistrationSession, step domain.RegStep, lead ...domain.Message) regResult {
	s.Step = step
	msgs := append(lead, f.Prompt(&s)...)
	return regResult{next: &s, msgs: msgs}
}

// retry keeps the step and data, explains the problem, and repeats the
// step's choices if it has any.
func (f *registrationFlow) retry(s domain.RegistrationSession, text string) regResult {
	msgs := []domain.Message{domain.Text(text)}
	if p := f.Prompt(&s); len(p) > 0 && p[len(p)-1].Kind != domain.MessageText {
		msgs = append(msgs, p[len(p)-1])
	}
	return regResult{next: &s, msgs: msgs}
}

func (f *registrationFlow) onIdentifier(s domain.RegistrationSession, in domain.Inbound) regResult {
	id, ok := parseIdentifier(in.Text)
	if !ok {
		return f.retry(s, "That doesn't look like a valid ID or Passport number. Please use letters, digits and dashes only (e.g., 63-123456A78).")
	}
	s.Data.IDPassport = id
	res := f.goTo(s, domain.RegAwaitingFirstName, domain.Text("Great, you are not already registered."))
	res.effect = effectCheckExisting
	return res
}

func (f *registrationFlow) nameStep(set func(*domain.RegistrationData, string), next domain.RegStep) func(domain.RegistrationSession, domain.Inbound) regResult {
	return func(s domain.RegistrationSession, in domain.Inbound) regResult {
		name, ok := parseName(in.Text)
		if !ok {
			return f.retry(s, "Please enter a valid name.")
		}
		set(&s.Data, name)
		return f.goTo(s, next)
	}
}

func (f *registrationFlow) onDOB(s domain.RegistrationSession, in domain.Inbound) regResult {
	dob, age, ok := parseDOB(in.Text, f.now())
	if !ok {
		return f.retry(s, "Invalid date format. Please use DD/MM/YYYY (e.g., 25/12/1990).")
	}
	s.Data.DOB = dob
	s.Data.Age = age
	return f.goTo(s, domain.RegAwaitingGender)
}

func (f *registrationFlow) onGender(s domain.RegistrationSession, in domain.Inbound) regResult {
	switch strings.TrimPrefix(in.Command, "gender_") {
	case "male":
		s.Data.Gender = "Male"
	case "female":
		s.Data.Gender = "Female"
	default:
		return f.retry(s, "Invalid gender selection. Please use the buttons.")
	}
	return f.goTo(s, domain.RegAwaitingPhone)
}

func (f *registrationFlow) phoneStep(set func(*domain.RegistrationData, string), next domain.RegStep) func(domain.RegistrationSession, domain.Inbound) regResult {
	return func(s domain.RegistrationSession, in domain.Inbound) regResult {
		phone, ok := parsePhone(in.Text)
		if !ok {
			return f.retry(s, "Invalid phone number format. Please include country code, e.g., +263771234567.")
		}
		set(&s.Data, phone)
		return f.goTo(s, next)
	}
}

func (f *registrationFlow) onSalvation(s domain.RegistrationSession, in domain.Inbound) regResult {
	switch in.Command {
	case "salvation_born_again", "born again":
		s.Data.SalvationStatus = "Born Again"
	case "salvation_not_born_again", "not born again":
		s.Data.SalvationStatus = "Not Born Again"
	default:
		return f.retry(s, "Please select your salvation status using the buttons.")
	}

	if ev, ok := f.cat.Event(s.Event); ok && ev.CollectsDependents {
		return f.goTo(s, domain.RegAwaitingDependents)
	}
	s.Data.Dependents = "0"
	return f.goTo(s, domain.RegAwaitingIsWorker)
}

func (f *registrationFlow) onDependents(s domain.RegistrationSession, in domain.Inbound) regResult {
	n, ok := parseCount(in.Text, maxDependents)
	if !ok {
		return f.retry(s, "Please reply with a number, e.g., 0 or 2.")
	}
	s.Data.Dependents = n
	return f.goTo(s, domain.RegAwaitingIsWorker)
}

func (f *registrationFlow) onIsWorker(s domain.RegistrationSession, in domain.Inbound) regResult {
	answer, ok := parseYesNo(in.Command)
	if !ok {
		return f.retry(s, msgYesNo)
	}
	s.Data.IsWorker = answer
	if answer == "Yes" {
		return f.goTo(s, domain.RegAwaitingWorkerType)
	}
	s.Data.WorkerType = domain.NotApplicable
	return f.goTo(s, domain.RegAwaitingNOKName)
}

func (f *registrationFlow) onWorkerType(s domain.RegistrationSession, in domain.Inbound) regResult {
	name, ok := f.cat.WorkerType(strings.TrimPrefix(in.Command, "worker_"))
	if !ok {
		return f.retry(s, "Invalid worker type selection. Please use the list.")
	}
	s.Data.WorkerType = name
	return f.goTo(s, domain.RegAwaitingNOKName)
}

func (f *registrationFlow) startDateStep(next domain.RegStep) func(domain.RegistrationSession, domain.Inbound) regResult {
	return func(s domain.RegistrationSession, in domain.Inbound) regResult {
		t, ok := parseDate(in.Text)
		if !ok {
			return f.retry(s, "Invalid date format. Please use DD/MM/YYYY (e.g., 07/12/2025).")
		}
		s.Data.CampStart = t.Format(dateLayout)
		return f.goTo(s, next)
	}
}

func (f *registrationFlow) endDateStep(next domain.RegStep) func(domain.RegistrationSession, domain.Inbound) regResult {
	return func(s domain.RegistrationSession, in domain.Inbound) regResult {
		t, ok := parseDate(in.Text)
		if !ok {
			return f.retry(s, "Invalid date format. Please use DD/MM/YYYY (e.g., 21/12/2025).")
		}
		if start, ok := parseDate(s.Data.CampStart); ok && t.Before(start) {
			return f.retry(s, fmt.Sprintf(
				"Your departure date cannot be before your arrival date (%s). Please enter the date you plan to leave.", s.Data.CampStart))
		}
		s.Data.CampEnd = t.Format(dateLayout)
		return f.goTo(s, next)
	}
}

func (f *registrationFlow) volunteerStep(department, afterNo domain.RegStep) func(domain.RegistrationSession, domain.Inbound) regResult {
	return func(s domain.RegistrationSession, in domain.Inbound) regResult {
		answer, ok := parseYesNo(in.Command)
		if !ok {
			return f.retry(s, msgYesNo)
		}
		s.Data.VolunteerStatus = answer
		if answer == "Yes" {
			return f.goTo(s, department)
		}
		s.Data.VolunteerDepartment = domain.NotApplicable
		return f.goTo(s, afterNo)
	}
}

func (f *registrationFlow) departmentStep(next domain.RegStep) func(domain.RegistrationSession, domain.Inbound) regResult {
	return func(s domain.RegistrationSession, in domain.Inbound) regResult {
		name, ok := f.cat.Department(strings.TrimPrefix(in.Command, "dept_"))
		if !ok {
			return f.retry(s, "Invalid department selection. Please use the list.")
		}
		s.Data.VolunteerDepartment = name
		return f.goTo(s, next)
	}
}

func (f *registrationFlow) onTransport(s domain.RegistrationSession, in domain.Inbound) regResult {
	answer, ok := parseYesNo(in.Command)
	if !ok {
		return f.retry(s, msgYesNo)
	}
	s.Data.TransportAssistance = answer
	return f.goTo(s, domain.RegAwaitingConfirmation)
}

func (f *registrationFlow) onConfirmation(s domain.RegistrationSession, in domain.Inbound) regResult {
	switch in.Command {
	case "reg_confirm", "confirm", "yes":
		return regResult{
			effect: effectCommit,
			record: &domain.Registration{Event: s.Event, Data: s.Data},
		}
	case "reg_edit", "edit":
		return f.goTo(s, domain.RegAwaitingFieldToEdit)
	case "reg_restart", "restart":
		s.Data = domain.RegistrationData{}
		return f.goTo(s, domain.RegAwaitingID, domain.Text("Okay, let's restart your registration."))
	}
	return f.retry(s, "Please use the buttons to confirm, edit or restart your registration.")
}

func (f *registrationFlow) onFieldToEdit(s domain.RegistrationSession, in domain.Inbound) regResult {
	switch in.Command {
	case "edit_name":
		return f.goTo(s, domain.RegEditName)
	case "edit_phone":
		return f.goTo(s, domain.RegEditPhone)
	case "edit_nok":
		return f.goTo(s, domain.RegEditNOKName)
	case "edit_volunteer":
		return f.goTo(s, domain.RegEditVolunteer)
	case "edit_dates":
		return f.goTo(s, domain.RegEditStartDate)
	case "edit_back":
		return f.goTo(s, domain.RegAwaitingConfirmation)
	}
	return f.retry(s, "Please choose the detail to change from the list.")
}

func (f *registrationFlow) onEditName(s domain.RegistrationSession, in domain.Inbound) regResult {
	first, last, ok := parseFullName(in.Text)
	if !ok {
		return f.retry(s, "Please enter both your first and last name.")
	}
	s.Data.FirstName = first
	s.Data.LastName = last
	return f.goTo(s, domain.RegAwaitingConfirmation)
}
