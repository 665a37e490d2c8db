package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/sundaybot/internal/catalog"
	"github.com/ashureev/sundaybot/internal/domain"
	"github.com/ashureev/sundaybot/internal/identity"
	"github.com/ashureev/sundaybot/internal/store"
)

// Content looks up read-only lessons, hymns and scripture.
type Content interface {
	CurrentLesson(ctx context.Context, class catalog.Class, now time.Time) (*domain.Lesson, error)
	Hymn(ctx context.Context, book catalog.Source, number string) (*domain.Hymn, error)
	Passage(ctx context.Context, bible catalog.Source, reference string) (*domain.Passage, error)
}

// Dispatcher delivers outbound messages to a user.
type Dispatcher interface {
	Send(ctx context.Context, userID string, msg domain.Message) error
}

// Answerer answers a free-text question from lesson material.
type Answerer interface {
	Answer(ctx context.Context, question, material string) (string, error)
}

// Exporter copies every registration for an event to an external sheet and
// returns a one-line report for the requesting admin.
type Exporter interface {
	Export(ctx context.Context, event domain.EventType) (string, error)
}

// Deps are the collaborators an Engine is built from. Sessions,
// Registrations, Content and Dispatcher are required.
type Deps struct {
	Sessions      store.SessionStore
	Registrations store.RegistrationStore
	Content       Content
	Dispatcher    Dispatcher
	Answerer      Answerer
	Exporter      Exporter
	Catalog       *catalog.Catalog
	Admins        *identity.AllowList
	Logger        *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
	// Spawn runs background admin jobs. Defaults to a new goroutine.
	Spawn func(func())
	// JobTimeout bounds one admin export. Defaults to 5 minutes.
	JobTimeout time.Duration
}
