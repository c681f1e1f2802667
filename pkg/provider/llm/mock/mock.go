// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider to script the fragments a conversation turn streams back and
// to verify the message history the pipeline sent.
//
// Example:
//
//	p := &mock.Provider{Fragments: []string{"你好，", "世界。"}}
//	ch, _ := p.StreamChat(ctx, msgs)
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/parleyvoice/parley/pkg/provider/llm"
)

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)

// StreamChatCall records a single invocation of StreamChat.
type StreamChatCall struct {
	// Messages is a copy of the conversation passed to StreamChat.
	Messages []llm.Message
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Fragments is the sequence of text chunks emitted by StreamChat, followed
	// by a final chunk with FinishReason "stop".
	Fragments []string

	// StreamErr, if non-nil, is returned by StreamChat instead of a channel.
	StreamErr error

	// FailMidStream, when set, emits an "error" chunk after Fragments instead
	// of a clean stop.
	FailMidStream bool

	// CompleteResult is returned by Complete. When empty, Complete returns the
	// joined Fragments.
	CompleteResult string

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// --- Call records ---

	// StreamChatCalls records every call to StreamChat in order.
	StreamChatCalls []StreamChatCall
}

// StreamChat records the call and streams the scripted fragments.
func (p *Provider) StreamChat(ctx context.Context, messages []llm.Message) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)
	p.StreamChatCalls = append(p.StreamChatCalls, StreamChatCall{Messages: msgs})
	fragments := make([]string, len(p.Fragments))
	copy(fragments, p.Fragments)
	streamErr := p.StreamErr
	failMid := p.FailMidStream
	p.mu.Unlock()

	if streamErr != nil {
		return nil, streamErr
	}

	ch := make(chan llm.Chunk, len(fragments)+1)
	go func() {
		defer close(ch)
		for _, f := range fragments {
			select {
			case ch <- llm.Chunk{Text: f}:
			case <-ctx.Done():
				return
			}
		}
		final := llm.Chunk{FinishReason: "stop"}
		if failMid {
			final = llm.Chunk{FinishReason: "error", Text: "mock: backend failed"}
		}
		select {
		case ch <- final:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// Complete returns CompleteResult or the joined fragments.
func (p *Provider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CompleteErr != nil {
		return "", p.CompleteErr
	}
	if p.CompleteResult != "" {
		return p.CompleteResult, nil
	}
	return strings.Join(p.Fragments, ""), nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StreamChatCalls = nil
}
