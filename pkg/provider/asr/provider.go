// Package asr defines the Provider interface for speech recognition backends.
//
// An ASR provider wraps a real-time transcription service and exposes a
// streaming session: once opened, a session accepts raw PCM audio frames and
// emits two streams of Transcript values, low-latency partials for UI feedback
// and authoritative finals that drive the dialog turn.
//
// One provider instance is shared by every device connection; each connection
// opens its own session. Implementations must be safe for concurrent use.
package asr

import "context"

// StreamConfig describes the audio format and recognition hints for a new
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. The device link delivers
	// 16000.
	SampleRate int

	// Channels is the number of audio channels. The device link is mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "zh-CN",
	// "en-US"). An empty string lets the provider auto-detect, if supported.
	Language string
}

// Transcript is one recognition result.
type Transcript struct {
	// Text is the recognised utterance.
	Text string

	// IsFinal marks an authoritative result. Only finals start a dialog turn.
	IsFinal bool

	// Confidence is the provider's confidence in [0, 1], when reported.
	Confidence float64
}

// SessionHandle represents an open streaming session. Callers must call Close
// when the session is no longer needed; failing to do so leaks goroutines and
// network connections inside the provider. All methods must be safe for
// concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes for transcription. The
	// chunk must match the format agreed in StreamConfig. Calling SendAudio
	// after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel emitting interim results. The
	// channel is closed when the session ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel emitting committed results. The
	// channel is closed when the session ends.
	Finals() <-chan Transcript

	// Close terminates the session, flushes pending audio, and releases all
	// resources. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any recognition backend.
type Provider interface {
	// StartStream opens a new streaming session with the given audio format.
	// The returned SessionHandle is ready to accept audio immediately. The
	// caller owns the handle and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
