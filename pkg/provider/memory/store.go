// Package memory defines the conversation memory used by dialog sessions.
//
// Two kinds of state live here. Turns are the raw per-session dialog log: the
// controller loads the recent window when building the model prompt and
// appends both sides of every exchange. Summaries are per-device digests
// written when a session closes, so a device greeting a returning user can
// carry context across sessions.
//
// All interfaces are public so external packages can supply alternative
// backends (Postgres, Redis, in-memory, ...). Every implementation must be
// safe for concurrent use.
package memory

import (
	"context"
	"time"
)

// Turn is one utterance in a dialog, from either side.
type Turn struct {
	// SessionID identifies the connection session the turn belongs to.
	SessionID string

	// DeviceID identifies the physical device, stable across sessions.
	DeviceID string

	// Role is "user" or "assistant".
	Role string

	// Content is the spoken or generated text.
	Content string

	// CreatedAt is when the turn was recorded. Zero means now.
	CreatedAt time.Time
}

// Store is the abstraction over any conversation memory backend.
type Store interface {
	// SaveTurn appends a turn to the session log.
	SaveTurn(ctx context.Context, turn Turn) error

	// Recent returns up to limit turns for sessionID, oldest first. A limit of
	// zero applies the backend default.
	Recent(ctx context.Context, sessionID string, limit int) ([]Turn, error)

	// SaveSummary stores or replaces the cross-session digest for deviceID.
	SaveSummary(ctx context.Context, deviceID, summary string) error

	// Summary returns the stored digest for deviceID, or "" when none exists.
	Summary(ctx context.Context, deviceID string) (string, error)

	// Close releases backend resources.
	Close() error
}
