// Package agentstore looks up per-agent dialog settings in PostgreSQL.
//
// A device selects its agent by connecting to /ws/<agent_id>. The agent row
// carries the persona prompt and the model and voice bindings; the voice row
// is joined in so one query resolves everything a connection needs. Devices
// whose agent has no voice binding fall back to the free Edge voice.
package agentstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the agent and voice tables when they do not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS tts_voice (
	id       TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	voice    TEXT NOT NULL,
	api_key  TEXT NOT NULL DEFAULT '',
	base_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS agents (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	system_prompt TEXT NOT NULL DEFAULT '',
	llm_provider  TEXT NOT NULL DEFAULT '',
	llm_model     TEXT NOT NULL DEFAULT '',
	llm_api_key   TEXT NOT NULL DEFAULT '',
	tts_voice_id  TEXT REFERENCES tts_voice(id)
);
`

// ErrNotFound is returned by [Store.Lookup] when no agent row matches.
var ErrNotFound = errors.New("agentstore: agent not found")

// Agent is one resolved agent row with its voice binding flattened in. Voice
// fields are empty when the agent has no voice bound.
type Agent struct {
	ID           string
	Name         string
	SystemPrompt string

	LLMProvider string
	LLMModel    string
	LLMAPIKey   string

	VoiceProvider string
	VoiceID       string
	VoiceAPIKey   string
	VoiceBaseURL  string
}

// HasVoice reports whether the agent has an explicit voice binding.
func (a *Agent) HasVoice() bool { return a.VoiceProvider != "" }

// rowQuerier is the slice of a connection pool Lookup needs. *pgxpool.Pool
// satisfies it; tests substitute a fake.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store resolves agents from the database.
type Store struct {
	db rowQuerier
}

// New returns a store reading from pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// EnsureSchema creates the tables if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("agentstore: create schema: %w", err)
	}
	return nil
}

const lookupQuery = `
SELECT a.id, a.name, a.system_prompt,
       a.llm_provider, a.llm_model, a.llm_api_key,
       COALESCE(v.provider, ''), COALESCE(v.voice, ''),
       COALESCE(v.api_key, ''), COALESCE(v.base_url, '')
FROM agents a
LEFT JOIN tts_voice v ON a.tts_voice_id = v.id
WHERE a.id = $1
`

// Lookup resolves the agent with the given ID, including its voice binding.
// Returns [ErrNotFound] when no such agent exists.
func (s *Store) Lookup(ctx context.Context, agentID string) (*Agent, error) {
	a := &Agent{}
	err := s.db.QueryRow(ctx, lookupQuery, agentID).Scan(
		&a.ID, &a.Name, &a.SystemPrompt,
		&a.LLMProvider, &a.LLMModel, &a.LLMAPIKey,
		&a.VoiceProvider, &a.VoiceID, &a.VoiceAPIKey, &a.VoiceBaseURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, agentID)
	}
	if err != nil {
		return nil, fmt.Errorf("agentstore: lookup %q: %w", agentID, err)
	}
	return a, nil
}

// AgentIDFromPath extracts the agent ID from a WebSocket request path such as
// "/ws/abc123". Returns "" when the path has no trailing segment, in which
// case the connection uses the configured default providers.
func AgentIDFromPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	parts := strings.Split(trimmed, "/")
	// A single-segment path like "/ws" is just the endpoint prefix.
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}
