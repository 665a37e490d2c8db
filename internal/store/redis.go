package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ashureev/sundaybot/internal/domain"
)

const (
	redisSessionPrefix = "sundaybot:session:"
	redisInboxPrefix   = "sundaybot:inbox:"
	redisInboxTTL      = 24 * time.Hour
)

// RedisSessionStore keeps sessions in Redis with a sliding TTL. Idle
// sessions expire on their own, so it needs no sweeper.
type RedisSessionStore struct {
	rdb *goredis.Client
	ttl time.Duration
	now func() time.Time
}

type redisSession struct {
	State     json.RawMessage `json:"state"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*RedisSessionStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisWithClient(rdb, ttl), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb *goredis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl, now: time.Now}
}

// LoadSession retrieves the session for a user.
func (s *RedisSessionStore) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	raw, err := s.rdb.Get(ctx, redisSessionPrefix+userID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var rec redisSession
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session for %s: %w: %v", userID, domain.ErrInvalidSession, err)
	}
	state, err := domain.UnmarshalState(rec.State)
	if err != nil {
		return nil, fmt.Errorf("decode session for %s: %w", userID, err)
	}

	return &domain.Session{
		UserID:    userID,
		State:     state,
		CreatedAt: time.Unix(rec.CreatedAt, 0),
		UpdatedAt: time.Unix(rec.UpdatedAt, 0),
	}, nil
}

// SaveSession creates or replaces a user's session and refreshes its TTL.
func (s *RedisSessionStore) SaveSession(ctx context.Context, session *domain.Session) error {
	state, err := domain.MarshalState(session.State)
	if err != nil {
		return fmt.Errorf("encode session for %s: %w", session.UserID, err)
	}

	now := s.now()
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	raw, err := json.Marshal(redisSession{State: state, CreatedAt: createdAt.Unix(), UpdatedAt: now.Unix()})
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}

	if err := s.rdb.Set(ctx, redisSessionPrefix+session.UserID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// DeleteSession removes a user's session.
func (s *RedisSessionStore) DeleteSession(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, redisSessionPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// MarkProcessed records an inbound message id with SETNX.
func (s *RedisSessionStore) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, redisInboxPrefix+messageID, s.now().Unix(), redisInboxTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis mark processed: %w", err)
	}
	return ok, nil
}

// Ping verifies Redis connectivity.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisSessionStore) Close() error {
	return s.rdb.Close()
}
