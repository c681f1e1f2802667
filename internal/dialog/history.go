// Package dialog manages the conversational state around the voice pipeline:
// assembling the model prompt for each turn from the agent persona, the
// device's cross-session digest, and the recent turn window, and condensing a
// finished session into a digest for the next one.
//
// All exported types are safe for concurrent use.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/parleyvoice/parley/pkg/provider/llm"
	"github.com/parleyvoice/parley/pkg/provider/memory"
)

// History assembles model prompts for one connection and records both sides
// of every exchange. The backing store may be shared; History itself holds
// only the session identity and the persona.
type History struct {
	store  memory.Store
	log    *slog.Logger
	window int

	sessionID    string
	deviceID     string
	systemPrompt string

	mu     sync.Mutex
	digest string // cross-session summary, loaded lazily once
	loaded bool
}

// HistoryConfig configures a [History].
type HistoryConfig struct {
	// Store is the conversation memory backend. Nil disables history: every
	// prompt then contains only the persona and the current utterance.
	Store memory.Store

	// SessionID and DeviceID identify the connection and the device.
	SessionID string
	DeviceID  string

	// SystemPrompt is the agent persona injected as the leading system
	// message.
	SystemPrompt string

	// Window is how many stored turns are loaded into each prompt. Zero
	// selects 20.
	Window int

	// Logger receives store failures, which degrade to a shorter prompt
	// rather than failing the turn.
	Logger *slog.Logger
}

// NewHistory creates a History for one connection.
func NewHistory(cfg HistoryConfig) *History {
	if cfg.Window <= 0 {
		cfg.Window = 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &History{
		store:        cfg.Store,
		log:          cfg.Logger,
		window:       cfg.Window,
		sessionID:    cfg.SessionID,
		deviceID:     cfg.DeviceID,
		systemPrompt: cfg.SystemPrompt,
	}
}

// Prompt builds the message list for one user utterance: persona, the
// device's digest from earlier sessions, the recent turn window, and the
// utterance itself. Store failures are logged and skipped; a voice turn must
// never stall on the memory backend.
func (h *History) Prompt(ctx context.Context, userText string) []llm.Message {
	msgs := make([]llm.Message, 0, h.window+3)

	system := h.systemPrompt
	if digest := h.loadDigest(ctx); digest != "" {
		system = strings.TrimSpace(system + "\n\nWhat you remember about this user from earlier conversations:\n" + digest)
	}
	if system != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: system})
	}

	if h.store != nil {
		turns, err := h.store.Recent(ctx, h.sessionID, h.window)
		if err != nil {
			h.log.Warn("load recent turns", "error", err)
		}
		for _, t := range turns {
			msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
		}
	}

	return append(msgs, llm.Message{Role: "user", Content: userText})
}

// Record stores one exchange: the user utterance and the assistant reply.
// Failures are logged, not returned, for the same reason as in Prompt.
func (h *History) Record(ctx context.Context, userText, assistantText string) {
	if h.store == nil {
		return
	}
	for _, turn := range []memory.Turn{
		{SessionID: h.sessionID, DeviceID: h.deviceID, Role: "user", Content: userText},
		{SessionID: h.sessionID, DeviceID: h.deviceID, Role: "assistant", Content: assistantText},
	} {
		if err := h.store.SaveTurn(ctx, turn); err != nil {
			h.log.Warn("save turn", "role", turn.Role, "error", err)
		}
	}
}

// loadDigest fetches the device's cross-session digest once and caches it for
// the life of the connection.
func (h *History) loadDigest(ctx context.Context) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loaded || h.store == nil {
		h.loaded = true
		return h.digest
	}
	digest, err := h.store.Summary(ctx, h.deviceID)
	if err != nil {
		h.log.Warn("load device digest", "error", err)
	}
	h.digest = digest
	h.loaded = true
	return h.digest
}

// digestPrompt asks the model to compress a finished session for the next one.
const digestPrompt = `Summarise this conversation between a user and their voice assistant in a few sentences.
Keep the user's name, stated preferences, ongoing topics, and anything they asked you to remember.
Write it as notes the assistant reads before the next conversation.`

// Summarise condenses the session's turns into a digest and stores it for the
// device. Called once when the connection closes; errors are returned so the
// caller can decide whether to log or retry.
func (h *History) Summarise(ctx context.Context, model llm.Provider) error {
	if h.store == nil || model == nil {
		return nil
	}
	turns, err := h.store.Recent(ctx, h.sessionID, 0)
	if err != nil {
		return fmt.Errorf("dialog: load session turns: %w", err)
	}
	if len(turns) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "[%s]: %s\n", t.Role, t.Content)
	}

	digest, err := model.Complete(ctx, []llm.Message{
		{Role: "system", Content: digestPrompt},
		{Role: "user", Content: sb.String()},
	})
	if err != nil {
		return fmt.Errorf("dialog: summarise session: %w", err)
	}
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return nil
	}
	if err := h.store.SaveSummary(ctx, h.deviceID, digest); err != nil {
		return fmt.Errorf("dialog: save digest: %w", err)
	}
	return nil
}
