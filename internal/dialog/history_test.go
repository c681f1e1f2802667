package dialog

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	llmmock "github.com/parleyvoice/parley/pkg/provider/llm/mock"
	memmock "github.com/parleyvoice/parley/pkg/provider/memory/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPromptIncludesPersonaHistoryAndUtterance(t *testing.T) {
	t.Parallel()

	store := memmock.NewStore()
	h := NewHistory(HistoryConfig{
		Store:        store,
		SessionID:    "s1",
		DeviceID:     "d1",
		SystemPrompt: "You are a helpful robot.",
		Logger:       testLogger(),
	})

	ctx := context.Background()
	h.Record(ctx, "hi", "hello there")

	msgs := h.Prompt(ctx, "how are you?")
	if len(msgs) != 4 {
		t.Fatalf("prompt length = %d, want 4 (system, user, assistant, user)", len(msgs))
	}
	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, "helpful robot") {
		t.Errorf("leading message = %+v, want persona system message", msgs[0])
	}
	if msgs[1].Content != "hi" || msgs[2].Content != "hello there" {
		t.Errorf("history window wrong: %+v", msgs[1:3])
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" || last.Content != "how are you?" {
		t.Errorf("trailing message = %+v, want the current utterance", last)
	}
}

func TestPromptMergesDeviceDigestIntoSystem(t *testing.T) {
	t.Parallel()

	store := memmock.NewStore()
	ctx := context.Background()
	if err := store.SaveSummary(ctx, "d1", "User's name is Ada."); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	h := NewHistory(HistoryConfig{
		Store:        store,
		SessionID:    "s1",
		DeviceID:     "d1",
		SystemPrompt: "Persona.",
		Logger:       testLogger(),
	})
	msgs := h.Prompt(ctx, "hello")
	if !strings.Contains(msgs[0].Content, "Ada") {
		t.Errorf("system message missing device digest: %q", msgs[0].Content)
	}
}

func TestPromptWithoutStore(t *testing.T) {
	t.Parallel()

	h := NewHistory(HistoryConfig{SystemPrompt: "Persona.", Logger: testLogger()})
	msgs := h.Prompt(context.Background(), "hello")
	if len(msgs) != 2 {
		t.Fatalf("prompt length = %d, want 2", len(msgs))
	}
	// Record must be a no-op, not a panic.
	h.Record(context.Background(), "a", "b")
}

func TestPromptWindowLimitsHistory(t *testing.T) {
	t.Parallel()

	store := memmock.NewStore()
	h := NewHistory(HistoryConfig{
		Store:     store,
		SessionID: "s1",
		DeviceID:  "d1",
		Window:    2,
		Logger:    testLogger(),
	})

	ctx := context.Background()
	h.Record(ctx, "one", "1")
	h.Record(ctx, "two", "2")
	h.Record(ctx, "three", "3")

	msgs := h.Prompt(ctx, "four")
	// No system prompt configured: 2 windowed turns + current utterance.
	if len(msgs) != 3 {
		t.Fatalf("prompt length = %d, want 3", len(msgs))
	}
	if msgs[0].Content != "three" || msgs[1].Content != "3" {
		t.Errorf("window kept wrong turns: %+v", msgs[:2])
	}
}

func TestSummariseStoresDigestForDevice(t *testing.T) {
	t.Parallel()

	store := memmock.NewStore()
	h := NewHistory(HistoryConfig{
		Store:     store,
		SessionID: "s1",
		DeviceID:  "d1",
		Logger:    testLogger(),
	})

	ctx := context.Background()
	h.Record(ctx, "my name is Ada", "nice to meet you, Ada")

	model := &llmmock.Provider{CompleteResult: "User's name is Ada."}
	if err := h.Summarise(ctx, model); err != nil {
		t.Fatalf("Summarise: %v", err)
	}
	digest, err := store.Summary(ctx, "d1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if digest != "User's name is Ada." {
		t.Errorf("stored digest = %q", digest)
	}
}

func TestSummariseEmptySessionWritesNothing(t *testing.T) {
	t.Parallel()

	store := memmock.NewStore()
	h := NewHistory(HistoryConfig{Store: store, SessionID: "s1", DeviceID: "d1", Logger: testLogger()})

	model := &llmmock.Provider{CompleteResult: "should not be called"}
	if err := h.Summarise(context.Background(), model); err != nil {
		t.Fatalf("Summarise: %v", err)
	}
	digest, _ := store.Summary(context.Background(), "d1")
	if digest != "" {
		t.Errorf("digest written for empty session: %q", digest)
	}
}
