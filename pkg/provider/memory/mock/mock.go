// Package mock provides an in-memory test double for the memory.Store
// interface. It doubles as the fallback store when no database is configured.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/parleyvoice/parley/pkg/provider/memory"
)

// Ensure Store implements memory.Store at compile time.
var _ memory.Store = (*Store)(nil)

// Store is a map-backed memory.Store.
type Store struct {
	mu sync.Mutex

	// SaveTurnErr, if non-nil, is returned by SaveTurn.
	SaveTurnErr error

	turns     map[string][]memory.Turn
	summaries map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		turns:     map[string][]memory.Turn{},
		summaries: map[string]string{},
	}
}

// SaveTurn implements memory.Store.
func (s *Store) SaveTurn(ctx context.Context, turn memory.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveTurnErr != nil {
		return s.SaveTurnErr
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

// Recent implements memory.Store.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]memory.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.turns[sessionID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]memory.Turn, limit)
	copy(out, all[len(all)-limit:])
	return out, nil
}

// SaveSummary implements memory.Store.
func (s *Store) SaveSummary(ctx context.Context, deviceID, summary string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[deviceID] = summary
	return nil
}

// Summary implements memory.Store.
func (s *Store) Summary(ctx context.Context, deviceID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries[deviceID], nil
}

// Close implements memory.Store.
func (s *Store) Close() error { return nil }
