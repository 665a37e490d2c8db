package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/sundaybot/internal/domain"
	"github.com/ashureev/sundaybot/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets webhook readers proceed while a registration is being written.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		step TEXT NOT NULL,
		state_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS registrations (
		event TEXT NOT NULL,
		id_passport TEXT NOT NULL,
		data_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (event, id_passport)
	);

	CREATE TABLE IF NOT EXISTS inbox (
		message_id TEXT PRIMARY KEY,
		received_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_inbox_received ON inbox(received_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// LoadSession retrieves the session for a user.
func (s *SQLiteStore) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	query := `SELECT state_json, created_at, updated_at FROM sessions WHERE user_id = ?`

	var stateJSON string
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&stateJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	state, err := domain.UnmarshalState([]byte(stateJSON))
	if err != nil {
		return nil, fmt.Errorf("decode session for %s: %w", userID, err)
	}

	return &domain.Session{
		UserID:    userID,
		State:     state,
		CreatedAt: time.Unix(createdAt, 0),
		UpdatedAt: time.Unix(updatedAt, 0),
	}, nil
}

// SaveSession creates or replaces a user's session.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.Session) error {
	stateJSON, err := domain.MarshalState(session.State)
	if err != nil {
		return fmt.Errorf("encode session for %s: %w", session.UserID, err)
	}

	now := s.now()
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
	INSERT INTO sessions (user_id, mode, step, state_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		mode = excluded.mode,
		step = excluded.step,
		state_json = excluded.state_json,
		updated_at = excluded.updated_at`

	err = shared.RetryOnBusy(ctx, "save session", writeAttempts, writeBaseDelay, func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			session.UserID, string(session.Mode()), session.Step(), string(stateJSON),
			createdAt.Unix(), now.Unix(),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// DeleteSession removes a user's session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, userID string) error {
	err := shared.RetryOnBusy(ctx, "delete session", writeAttempts, writeBaseDelay, func() error {
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteStaleSessions removes sessions not updated within idle.
func (s *SQLiteStore) DeleteStaleSessions(ctx context.Context, idle time.Duration) (int64, error) {
	threshold := s.now().Add(-idle).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return result.RowsAffected()
}

// GetRegistration retrieves a registration by its natural key.
func (s *SQLiteStore) GetRegistration(ctx context.Context, event domain.EventType, id string) (*domain.Registration, error) {
	query := `SELECT data_json, created_at FROM registrations WHERE event = ? AND id_passport = ?`

	var dataJSON string
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, string(event), id).Scan(&dataJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan registration row: %w", err)
	}

	return decodeRegistration(event, dataJSON, createdAt)
}

// CreateRegistration inserts a registration if its key is free.
func (s *SQLiteStore) CreateRegistration(ctx context.Context, reg *domain.Registration) error {
	if reg.ID() == "" {
		return fmt.Errorf("create registration: empty identifier")
	}
	dataJSON, err := json.Marshal(reg.Data)
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}

	now := s.now()
	query := `
	INSERT INTO registrations (event, id_passport, data_json, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(event, id_passport) DO NOTHING`

	var inserted int64
	err = shared.RetryOnBusy(ctx, "create registration", writeAttempts, writeBaseDelay, func() error {
		result, execErr := s.db.ExecContext(ctx, query, string(reg.Event), reg.ID(), string(dataJSON), now.Unix())
		if execErr != nil {
			return execErr
		}
		inserted, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}

	if inserted == 1 {
		reg.CreatedAt = time.Unix(now.Unix(), 0)
		return nil
	}

	existing, err := s.GetRegistration(ctx, reg.Event, reg.ID())
	if err != nil {
		return fmt.Errorf("read existing registration: %w", err)
	}
	if existing != nil && existing.Data == reg.Data {
		slog.Info("Registration create retried with identical data", "event", reg.Event, "id", reg.ID())
		reg.CreatedAt = existing.CreatedAt
		return nil
	}
	return ErrConflict
}

// ListRegistrations returns all registrations for an event.
func (s *SQLiteStore) ListRegistrations(ctx context.Context, event domain.EventType) ([]*domain.Registration, error) {
	query := `SELECT data_json, created_at FROM registrations WHERE event = ? ORDER BY created_at, id_passport`

	rows, err := s.db.QueryContext(ctx, query, string(event))
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close registration rows", "error", closeErr)
		}
	}()

	var regs []*domain.Registration
	for rows.Next() {
		var dataJSON string
		var createdAt int64
		if err := rows.Scan(&dataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan registration row: %w", err)
		}
		reg, err := decodeRegistration(event, dataJSON, createdAt)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}

	return regs, nil
}

// MarkProcessed records an inbound message id.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	var inserted int64
	err := shared.RetryOnBusy(ctx, "mark processed", writeAttempts, writeBaseDelay, func() error {
		result, execErr := s.db.ExecContext(ctx,
			`INSERT INTO inbox (message_id, received_at) VALUES (?, ?) ON CONFLICT(message_id) DO NOTHING`,
			messageID, s.now().Unix())
		if execErr != nil {
			return execErr
		}
		inserted, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("mark message processed: %w", err)
	}
	return inserted == 1, nil
}

// PruneInbox forgets processed message ids older than age.
func (s *SQLiteStore) PruneInbox(ctx context.Context, age time.Duration) (int64, error) {
	threshold := s.now().Add(-age).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM inbox WHERE received_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("prune inbox: %w", err)
	}
	return result.RowsAffected()
}

func decodeRegistration(event domain.EventType, dataJSON string, createdAt int64) (*domain.Registration, error) {
	var data domain.RegistrationData
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		return nil, fmt.Errorf("decode registration: %w", err)
	}
	return &domain.Registration{
		Event:     event,
		Data:      data,
		CreatedAt: time.Unix(createdAt, 0),
	}, nil
}
