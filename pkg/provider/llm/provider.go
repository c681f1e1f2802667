// Package llm defines the Provider interface for the dialog model backends.
//
// A provider wraps a remote or local chat model API and exposes a streaming
// completion interface. The pipeline feeds each text fragment into the
// segmenter as it arrives, so providers must emit fragments promptly rather
// than batching them.
//
// Implementations must be safe for concurrent use. Channels returned by
// StreamChat must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package llm

import "context"

// Message represents a single message in a conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Chunk is a single fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental text content of this chunk. May be empty on the
	// final chunk.
	Text string

	// FinishReason is set on the final chunk and indicates why generation
	// stopped: "stop" (natural end), "length" (token cap reached), "error"
	// (backend failure, with Text carrying the message), or "" (non-final).
	FinishReason string
}

// Err reports whether the chunk signals a backend failure.
func (c Chunk) Err() bool { return c.FinishReason == "error" }

// Provider is the abstraction over any chat model backend.
//
// Implementations must be safe for concurrent use from multiple goroutines and
// must propagate context cancellation promptly.
type Provider interface {
	// StreamChat sends the conversation to the model and returns a read-only
	// channel emitting Chunk values as they arrive. The channel is closed by
	// the implementation when generation finishes or ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors after
	// the stream has started are surfaced as a Chunk with FinishReason
	// "error"; the error return is non-nil only when the stream cannot start.
	StreamChat(ctx context.Context, messages []Message) (<-chan Chunk, error)

	// Complete sends the conversation and waits for the full response. It is
	// a convenience wrapper for callers that do not need incremental output,
	// such as memory summarisation.
	Complete(ctx context.Context, messages []Message) (string, error)
}
