package engine

import (
	"fmt"

	"github.com/ashureev/sundaybot/internal/domain"
)

func (e *Engine) menu() domain.Message {
	opts := []domain.Option{
		{ID: "mode_lessons", Title: "Sunday School Lessons", Description: "Read this week's lesson or ask about it"},
		{ID: "mode_hymnbook", Title: "Hymnbook", Description: "Look up a hymn by number"},
		{ID: "mode_bible", Title: "Bible", Description: "Look up a scripture passage"},
	}
	for _, ev := range e.cat.Events {
		opts = append(opts, domain.Option{
			ID:          "mode_camp_reg_" + string(ev.Key),
			Title:       fmt.Sprintf("%s Registration", ev.Short),
			Description: ev.Dates,
		})
	}
	opts = append(opts, domain.Option{
		ID:          "mode_check_status",
		Title:       "Check Registration",
		Description: "See whether you are registered for a camp",
	})

	m := domain.List(
		"Welcome to SundayBot 🙏",
		"I can help you with lessons, hymns, camp registration, and more. Please choose an option:",
		"Choose an option",
		"Main Menu",
		opts...,
	)
	m.Footer = "Select from the list below"
	return m
}

func mainMenuButton(body string) domain.Message {
	return domain.Buttons(body, domain.Option{ID: "reset", Title: "Main Menu"})
}
