package agentstore

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestAgentIDFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/ws/abc123", "abc123"},
		{"/ws/abc123/", "abc123"},
		{"/v1/ws/device-7", "device-7"},
		{"/ws", ""},
		{"/ws/", ""},
		{"/", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := AgentIDFromPath(tt.path); got != tt.want {
			t.Errorf("AgentIDFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestAgentHasVoice(t *testing.T) {
	t.Parallel()

	a := &Agent{}
	if a.HasVoice() {
		t.Error("agent without voice binding reports HasVoice")
	}
	a.VoiceProvider = "elevenlabs"
	if !a.HasVoice() {
		t.Error("agent with voice binding reports no voice")
	}
}

// fakeRow lets Lookup be tested without a database.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.vals) {
			break
		}
		*(d.(*string)) = r.vals[i].(string)
	}
	return nil
}

type fakeQuerier struct {
	row fakeRow
}

func (q fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row { return q.row }

func TestLookupResolvesVoiceBinding(t *testing.T) {
	t.Parallel()

	s := &Store{db: fakeQuerier{row: fakeRow{vals: []any{
		"agent-1", "Mira", "You are Mira.",
		"openai", "gpt-4o-mini", "",
		"elevenlabs", "voice-9", "sk-v", "",
	}}}}

	a, err := s.Lookup(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if a.Name != "Mira" || a.LLMModel != "gpt-4o-mini" {
		t.Errorf("agent = %+v", a)
	}
	if !a.HasVoice() || a.VoiceID != "voice-9" {
		t.Errorf("voice binding = %q/%q, want elevenlabs/voice-9", a.VoiceProvider, a.VoiceID)
	}
}

func TestLookupNotFound(t *testing.T) {
	t.Parallel()

	s := &Store{db: fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}}
	_, err := s.Lookup(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
