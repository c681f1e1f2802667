// Package postgres provides the PostgreSQL-backed conversation memory store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parleyvoice/parley/pkg/provider/memory"
)

// Ensure Store implements memory.Store at compile time.
var _ memory.Store = (*Store)(nil)

// defaultRecentLimit bounds the prompt window when the caller passes zero.
const defaultRecentLimit = 20

// Schema creates the tables the store needs. Run once at deploy time or let
// NewStore apply it on startup.
const Schema = `
CREATE TABLE IF NOT EXISTS chat_turns (
    id         BIGSERIAL PRIMARY KEY,
    session_id TEXT        NOT NULL,
    device_id  TEXT        NOT NULL,
    role       TEXT        NOT NULL,
    content    TEXT        NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chat_turns_session_idx ON chat_turns (session_id, id);

CREATE TABLE IF NOT EXISTS chat_summaries (
    device_id  TEXT PRIMARY KEY,
    summary    TEXT        NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store is the PostgreSQL-backed memory store. It holds a single pgxpool.Pool
// shared by every connection. All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn, verifies it
// with a ping, and applies Schema.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("memory store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("memory store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memory store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memory store: apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// SaveTurn implements memory.Store.
func (s *Store) SaveTurn(ctx context.Context, turn memory.Turn) error {
	created := turn.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	const q = `
		INSERT INTO chat_turns (session_id, device_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, q, turn.SessionID, turn.DeviceID, turn.Role, turn.Content, created)
	if err != nil {
		return fmt.Errorf("memory store: save turn: %w", err)
	}
	return nil
}

// Recent implements memory.Store. Rows come back newest-first from the index
// scan and are reversed so callers see chronological order.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]memory.Turn, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	const q = `
		SELECT session_id, device_id, role, content, created_at
		FROM   chat_turns
		WHERE  session_id = $1
		ORDER  BY id DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("memory store: recent: %w", err)
	}
	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Turn, error) {
		var t memory.Turn
		err := row.Scan(&t.SessionID, &t.DeviceID, &t.Role, &t.Content, &t.CreatedAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("memory store: scan rows: %w", err)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// SaveSummary implements memory.Store.
func (s *Store) SaveSummary(ctx context.Context, deviceID, summary string) error {
	const q = `
		INSERT INTO chat_summaries (device_id, summary, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (device_id)
		DO UPDATE SET summary = EXCLUDED.summary, updated_at = now()`

	_, err := s.pool.Exec(ctx, q, deviceID, summary)
	if err != nil {
		return fmt.Errorf("memory store: save summary: %w", err)
	}
	return nil
}

// Summary implements memory.Store. A missing row is not an error.
func (s *Store) Summary(ctx context.Context, deviceID string) (string, error) {
	const q = `SELECT summary FROM chat_summaries WHERE device_id = $1`

	var summary string
	err := s.pool.QueryRow(ctx, q, deviceID).Scan(&summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("memory store: summary: %w", err)
	}
	return summary, nil
}

// Close implements memory.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
