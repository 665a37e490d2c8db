package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/sundaybot/internal/domain"
)

func (e *Engine) statusEvents() domain.Message {
	opts := make([]domain.Option, 0, len(e.cat.Events))
	for _, ev := range e.cat.Events {
		opts = append(opts, domain.Option{ID: "check_status_" + string(ev.Key), Title: ev.Short})
	}
	return domain.Buttons("Which camp registration would you like to check?", opts...)
}

func (e *Engine) statusIdentifierPrompt(ev domain.EventType) string {
	return fmt.Sprintf("Please enter the *ID or Passport number* you used to register for the *%s*.", e.cat.EventName(ev))
}

// status is a two-step lookup that always ends the session.
func (e *Engine) status(ctx context.Context, s *domain.StatusSession, in domain.Inbound) outcome {
	if s.Step == domain.StatusAwaitingEvent {
		ev, ok := domain.ParseEventType(strings.TrimPrefix(in.Command, "check_status_"))
		if !ok {
			return stay(s, domain.Text("Please choose a camp using the buttons."), e.statusEvents())
		}
		return stay(&domain.StatusSession{Step: domain.StatusAwaitingIdentifier, Event: ev},
			domain.Text(e.statusIdentifierPrompt(ev)))
	}

	id, ok := parseIdentifier(in.Text)
	if !ok {
		return stay(s, domain.Text("That doesn't look like a valid ID or Passport number. Please try again."))
	}

	reg, err := e.deps.Registrations.GetRegistration(ctx, s.Event, id)
	switch {
	case err != nil:
		e.logger.Error("Status lookup failed", "user_id", in.UserID, "event", s.Event, "error", err)
		return end(domain.Text("Sorry, I couldn't check your registration right now. Please try again later."))
	case reg == nil:
		return end(domain.Text(fmt.Sprintf(
			"I couldn't find a registration for ID *%s* for the *%s*.\n\nReturning to the main menu.",
			id, e.cat.EventName(s.Event))))
	}
	return end(domain.Text(e.statusSummary(reg) + "\n\nReturning to the main menu."))
}
