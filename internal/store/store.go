// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/sundaybot/internal/domain"
)

// ErrConflict is returned by Create when a different record already exists
// under the same (event, identifier) key.
var ErrConflict = errors.New("registration already exists")

// SessionStore persists dialogue sessions keyed by user identifier.
type SessionStore interface {
	// LoadSession returns the user's session, or nil if the user has none.
	// A stored session that no longer decodes returns domain.ErrInvalidSession.
	LoadSession(ctx context.Context, userID string) (*domain.Session, error)

	// SaveSession creates or replaces the user's session (last writer wins).
	SaveSession(ctx context.Context, session *domain.Session) error

	// DeleteSession removes the user's session. Deleting an absent session is not an error.
	DeleteSession(ctx context.Context, userID string) error
}

// RegistrationStore is the commit sink for finalized registrations.
type RegistrationStore interface {
	// GetRegistration returns the record for (event, id), or nil if absent.
	GetRegistration(ctx context.Context, event domain.EventType, id string) (*domain.Registration, error)

	// CreateRegistration atomically inserts the record if no record exists for
	// its key and stamps CreatedAt with the server time. Retrying with identical
	// data succeeds; a different existing record yields ErrConflict.
	CreateRegistration(ctx context.Context, reg *domain.Registration) error

	// ListRegistrations returns every record for an event, oldest first.
	ListRegistrations(ctx context.Context, event domain.EventType) ([]*domain.Registration, error)
}

// Inbox remembers processed inbound message ids so provider retries are
// handled once.
type Inbox interface {
	// MarkProcessed records messageID and reports whether it was new.
	MarkProcessed(ctx context.Context, messageID string) (bool, error)
}

// Sweeper removes sessions that have been idle for too long and forgets
// old inbound message ids.
type Sweeper interface {
	DeleteStaleSessions(ctx context.Context, idle time.Duration) (int64, error)
	PruneInbox(ctx context.Context, age time.Duration) (int64, error)
}

// Repository is the full SQLite-backed persistence surface.
type Repository interface {
	SessionStore
	RegistrationStore
	Inbox
	Sweeper

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
