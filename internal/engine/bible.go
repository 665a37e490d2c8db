package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/sundaybot/internal/catalog"
	"github.com/ashureev/sundaybot/internal/content"
	"github.com/ashureev/sundaybot/internal/domain"
)

func (e *Engine) bibleList() domain.Message {
	opts := make([]domain.Option, 0, len(e.cat.Bibles))
	for _, b := range e.cat.Bibles {
		opts = append(opts, domain.Option{ID: "bible_" + b.Key, Title: b.Name})
	}
	return domain.List("Bible", "Please choose a Bible version:", "View Versions", "Versions", opts...)
}

func (e *Engine) bible(ctx context.Context, s *domain.BibleSession, in domain.Inbound) outcome {
	if s.Step == domain.BibleAwaitingVersion {
		version, ok := e.cat.Bible(strings.TrimPrefix(in.Command, "bible_"))
		if !ok {
			return stay(s, domain.Text("Invalid Bible selection. Please choose from the list."), e.bibleList())
		}
		next := &domain.BibleSession{Step: domain.BibleAwaitingPassage, Version: version.Key}
		return stay(next, domain.Text(fmt.Sprintf("You've selected the *%s*. Please enter a passage (e.g., John 3:16).", version.Name)))
	}

	version, ok := e.cat.Bible(s.Version)
	if !ok {
		return end(domain.Text(msgSessionLost), e.menu())
	}

	msg, found := e.lookupPassage(ctx, in.UserID, version, in.Text)
	if !found {
		return stay(s, msg)
	}
	return stay(s,
		msg,
		domain.Text("You can enter another passage or return to the main menu."),
		mainMenuButton("Finished looking up verses?"),
	)
}

// bibleShortcut recognizes "bible <reference>" typed anywhere.
func bibleShortcut(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "bible") {
		return "", false
	}
	return strings.Join(fields[1:], " "), true
}

func (e *Engine) passageShortcut(ctx context.Context, userID, ref string) []domain.Message {
	version, _ := e.cat.Bible(e.cat.DefaultBible)
	msg, _ := e.lookupPassage(ctx, userID, version, ref)
	return []domain.Message{domain.Text(fmt.Sprintf("_Looking up %s..._", ref)), msg}
}

// lookupPassage returns the formatted passage, or a message explaining why
// it could not be shown.
func (e *Engine) lookupPassage(ctx context.Context, userID string, version catalog.Source, ref string) (domain.Message, bool) {
	p, err := e.deps.Content.Passage(ctx, version, strings.TrimSpace(ref))
	switch {
	case err == nil:
		return domain.Text(content.FormatPassage(p)), true
	case errors.Is(err, content.ErrBadReference):
		return domain.Text("Sorry, I couldn't understand that reference. Please use a format like *John 3:16* or *Genesis 1:1-5*."), false
	case errors.Is(err, content.ErrNotFound):
		return domain.Text(fmt.Sprintf("Sorry, I couldn't find that passage in the *%s*.", version.Name)), false
	case errors.Is(err, content.ErrUnavailable):
		e.logger.Warn("Bible unavailable", "user_id", userID, "bible", version.Key, "error", err)
		return domain.Text(fmt.Sprintf("Sorry, the *%s* is not available right now.", version.Name)), false
	}
	e.logger.Error("Passage lookup failed", "user_id", userID, "bible", version.Key, "error", err)
	return domain.Text(msgTechnical), false
}
