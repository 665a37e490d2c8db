package engine

import (
	"fmt"
	"strings"

	"github.com/ashureev/sundaybot/internal/domain"
)

const registeredLayout = "2006-01-02 15:04:05"

func (f *registrationFlow) text(body string) func(*domain.RegistrationSession) []domain.Message {
	return func(*domain.RegistrationSession) []domain.Message {
		return []domain.Message{domain.Text(body)}
	}
}

func (f *registrationFlow) buttons(body string, opts ...domain.Option) func(*domain.RegistrationSession) []domain.Message {
	return func(*domain.RegistrationSession) []domain.Message {
		return []domain.Message{domain.Buttons(body, opts...)}
	}
}

func (f *registrationFlow) yesNo(body string) func(*domain.RegistrationSession) []domain.Message {
	return f.buttons(body, domain.Option{ID: "yes", Title: "Yes"}, domain.Option{ID: "no", Title: "No"})
}

func (f *registrationFlow) workerTypes(*domain.RegistrationSession) []domain.Message {
	opts := make([]domain.Option, 0, len(f.cat.WorkerTypes))
	for _, w := range f.cat.WorkerTypes {
		opts = append(opts, domain.Option{ID: "worker_" + w.Key, Title: w.Name})
	}
	return []domain.Message{domain.List("Select Worker Type", "What type of worker are you?", "View Worker Types", "Worker Types", opts...)}
}

func (f *registrationFlow) departments(*domain.RegistrationSession) []domain.Message {
	opts := make([]domain.Option, 0, len(f.cat.Departments))
	for _, d := range f.cat.Departments {
		opts = append(opts, domain.Option{ID: "dept_" + d.Key, Title: d.Name})
	}
	return []domain.Message{domain.List("Select Department", "Which department would you like to volunteer for?", "View Departments", "Departments", opts...)}
}

func (f *registrationFlow) editMenu(*domain.RegistrationSession) []domain.Message {
	return []domain.Message{domain.List("Edit Registration", "Which detail would you like to change?", "Choose Field", "Fields",
		domain.Option{ID: "edit_name", Title: "Name"},
		domain.Option{ID: "edit_phone", Title: "Phone Number"},
		domain.Option{ID: "edit_nok", Title: "Next of Kin"},
		domain.Option{ID: "edit_volunteer", Title: "Volunteering"},
		domain.Option{ID: "edit_dates", Title: "Camp Stay Dates"},
		domain.Option{ID: "edit_back", Title: "Back to Summary"},
	)}
}

func (f *registrationFlow) confirmation(s *domain.RegistrationSession) []domain.Message {
	return []domain.Message{domain.Buttons(f.summary(s),
		domain.Option{ID: "reg_confirm", Title: "✅ Confirm"},
		domain.Option{ID: "reg_edit", Title: "✏️ Edit"},
		domain.Option{ID: "reg_restart", Title: "🔄 Restart"},
	)}
}

// summary renders the working data for review before submission.
func (f *registrationFlow) summary(s *domain.RegistrationSession) string {
	d := s.Data
	var b strings.Builder
	b.WriteString("*Please review your details:*\n\n")
	fmt.Fprintf(&b, "*Camp:* %s\n", f.cat.EventName(s.Event))
	fmt.Fprintf(&b, "*ID/Passport:* %s\n", d.IDPassport)
	fmt.Fprintf(&b, "*Name:* %s\n", d.FullName())
	fmt.Fprintf(&b, "*Date of Birth:* %s (Age: %d)\n", d.DOB, d.Age)
	fmt.Fprintf(&b, "*Gender:* %s\n", d.Gender)
	fmt.Fprintf(&b, "*Phone:* %s\n", d.Phone)
	fmt.Fprintf(&b, "*Salvation Status:* %s\n", d.SalvationStatus)
	if ev, ok := f.cat.Event(s.Event); ok && ev.CollectsDependents {
		fmt.Fprintf(&b, "*Dependents:* %s\n", d.Dependents)
	}
	fmt.Fprintf(&b, "*Worker:* %s\n", withDetail(d.IsWorker, d.WorkerType))
	fmt.Fprintf(&b, "*Next of Kin:* %s (%s)\n", d.NOKName, d.NOKPhone)
	fmt.Fprintf(&b, "*Camp Stay:* %s to %s\n", d.CampStart, d.CampEnd)
	fmt.Fprintf(&b, "*Volunteering:* %s\n", withDetail(d.VolunteerStatus, d.VolunteerDepartment))
	fmt.Fprintf(&b, "*Transport Assistance:* %s\n\n", d.TransportAssistance)
	b.WriteString("Is everything correct?")
	return b.String()
}

func (e *Engine) statusSummary(reg *domain.Registration) string {
	d := reg.Data
	var b strings.Builder
	b.WriteString("✅ *Registration Found!*\n\n")
	fmt.Fprintf(&b, "*Name:* %s\n", d.FullName())
	fmt.Fprintf(&b, "*Camp Type:* %s\n", e.cat.EventName(reg.Event))
	fmt.Fprintf(&b, "*ID/Passport:* %s\n", d.IDPassport)
	fmt.Fprintf(&b, "*Phone:* %s\n", d.Phone)
	if !reg.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "*Registered On:* %s\n", reg.CreatedAt.Format(registeredLayout))
	}
	fmt.Fprintf(&b, "*Camp Stay:* %s to %s", d.CampStart, d.CampEnd)
	if d.IsWorker != "" {
		fmt.Fprintf(&b, "\n*Worker:* %s", withDetail(d.IsWorker, d.WorkerType))
	}
	if d.TransportAssistance != "" {
		fmt.Fprintf(&b, "\n*Transport Assistance:* %s", d.TransportAssistance)
	}
	return b.String()
}

// withDetail renders "Yes (Media)" for a yes answer with a detail, and the
// bare answer otherwise.
func withDetail(answer, detail string) string {
	if answer == "Yes" && detail != "" && detail != domain.NotApplicable {
		return fmt.Sprintf("%s (%s)", answer, detail)
	}
	return answer
}
