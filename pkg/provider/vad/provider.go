// Package vad defines the Engine interface for voice activity detection
// backends.
//
// A VAD engine wraps a frame-level speech detector and surfaces it as a
// stateful per-connection session. The pipeline uses it for two things:
// deciding when an utterance has ended so the buffered audio can go to
// recognition, and detecting speech during playback, which triggers barge-in.
//
// VAD is synchronous by design: ProcessFrame returns immediately with a
// detection result, making it suitable for the per-frame receive loop.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle is owned by one connection and is not shared.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to ProcessFrame. The device link delivers 16000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. The
	// device link frames audio at 60 ms.
	FrameSizeMs int

	// SpeechThreshold is the probability above which a frame counts as speech.
	// Range [0, 1]. Typical: 0.5.
	SpeechThreshold float64

	// SilenceFrames is how many consecutive non-speech frames end an active
	// utterance. Zero selects the engine default.
	SilenceFrames int
}

// Event is the result of analysing one frame.
type Event struct {
	// IsSpeech reports whether the frame was classified as speech.
	IsSpeech bool

	// Probability is the raw speech probability in [0, 1].
	Probability float64

	// UtteranceStart is set on the first speech frame after silence.
	UtteranceStart bool

	// UtteranceEnd is set on the frame that closes an utterance, after
	// SilenceFrames of quiet.
	UtteranceEnd bool
}

// SessionHandle represents an active VAD session for a single audio stream.
// Each session maintains its own detection state; Reset clears that state
// without closing the session.
type SessionHandle interface {
	// ProcessFrame analyses a single audio frame and returns the detection
	// result. The frame must be raw little-endian 16-bit PCM matching the
	// session Config. It must not block; it runs inside the receive loop.
	ProcessFrame(frame []byte) (Event, error)

	// Reset clears accumulated detection state without closing the session.
	// Called when playback starts so echo from the previous turn cannot close
	// the next utterance early.
	Reset()

	// Close releases session resources. Calling Close more than once is safe
	// and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions, implemented by each backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a session with the given configuration, immediately
	// ready to accept frames. Returns an error for invalid configuration.
	NewSession(cfg Config) (SessionHandle, error)
}
