package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/sundaybot/internal/content"
	"github.com/ashureev/sundaybot/internal/domain"
)

func (e *Engine) hymnbookList() domain.Message {
	opts := make([]domain.Option, 0, len(e.cat.Hymnbooks))
	for _, b := range e.cat.Hymnbooks {
		opts = append(opts, domain.Option{ID: "hymnbook_" + b.Key, Title: b.Name})
	}
	return domain.List("Hymnbooks", "Please choose a hymnbook:", "View Hymnbooks", "Hymnbooks", opts...)
}

func (e *Engine) hymnbook(ctx context.Context, s *domain.HymnSession, in domain.Inbound) outcome {
	if s.Step == domain.HymnAwaitingBook {
		book, ok := e.cat.Hymnbook(strings.TrimPrefix(in.Command, "hymnbook_"))
		if !ok {
			return stay(s, domain.Text("Invalid hymnbook selection. Please choose from the list."), e.hymnbookList())
		}
		next := &domain.HymnSession{Step: domain.HymnAwaitingNumber, Book: book.Key}
		return stay(next, domain.Text(fmt.Sprintf("You've selected *%s*. Please enter a hymn number.", book.Name)))
	}

	raw := strings.TrimSpace(in.Text)
	if !isDigits(raw) {
		return stay(s, domain.Text("Please enter a valid number."))
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return stay(s, domain.Text("Please enter a valid number."))
	}

	book, ok := e.cat.Hymnbook(s.Book)
	if !ok {
		return end(domain.Text(msgSessionLost), e.menu())
	}

	hymn, err := e.deps.Content.Hymn(ctx, book, strconv.Itoa(n))
	switch {
	case errors.Is(err, content.ErrNotFound):
		return stay(s, domain.Text("Sorry, I couldn't find a hymn with that number."))
	case err != nil:
		e.logger.Error("Hymn lookup failed", "user_id", in.UserID, "hymnbook", book.Key, "error", err)
		return stay(s, domain.Text(msgTechnical))
	}

	return stay(s,
		domain.Text(content.FormatHymn(hymn)),
		domain.Text("You can enter another hymn number or return to the main menu."),
		mainMenuButton("Finished with hymns?"),
	)
}
