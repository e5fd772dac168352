package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/talent-client/internal/session"
)

// RedisSessionStore keeps session records as JSON strings.
type RedisSessionStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ session.Store = (*RedisSessionStore)(nil)

// NewRedisSessionStore builds a store. A zero ttl keeps records until they
// are deleted.
func NewRedisSessionStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisSessionStore) Load(ctx context.Context, key string) (*session.Record, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var rec session.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &rec, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, key string, rec session.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.rdb.Set(ctx, s.prefix+key, raw, s.ttl).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// Querier is the subset of *pgxpool.Pool the Postgres store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSessionStore keeps session records in the client_sessions table.
type PostgresSessionStore struct {
	db    Querier
	clock clockwork.Clock
	ttl   time.Duration
}

var _ session.Store = (*PostgresSessionStore)(nil)

// NewPostgresSessionStore builds a store. Records older than ttl are treated
// as absent; a zero ttl disables that check.
func NewPostgresSessionStore(db Querier, clock clockwork.Clock, ttl time.Duration) *PostgresSessionStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PostgresSessionStore{db: db, clock: clock, ttl: ttl}
}

func (s *PostgresSessionStore) Load(ctx context.Context, key string) (*session.Record, error) {
	var (
		rec       session.Record
		userJSON  []byte
		expiresAt *time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT token, user_json, saved_at, expires_at FROM client_sessions WHERE device_key = $1`,
		key,
	).Scan(&rec.Token, &userJSON, &rec.SavedAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if expiresAt != nil && !s.clock.Now().Before(*expiresAt) {
		return nil, nil
	}
	if err := json.Unmarshal(userJSON, &rec.User); err != nil {
		return nil, fmt.Errorf("failed to decode session user: %w", err)
	}
	return &rec, nil
}

func (s *PostgresSessionStore) Save(ctx context.Context, key string, rec session.Record) error {
	userJSON, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = s.clock.Now().UTC()
	}
	var expiresAt *time.Time
	if s.ttl > 0 {
		t := rec.SavedAt.Add(s.ttl)
		expiresAt = &t
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO client_sessions (device_key, token, user_json, saved_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_key) DO UPDATE
		SET token = EXCLUDED.token,
		    user_json = EXCLUDED.user_json,
		    saved_at = EXCLUDED.saved_at,
		    expires_at = EXCLUDED.expires_at`,
		key, rec.Token, userJSON, rec.SavedAt, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM client_sessions WHERE device_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
