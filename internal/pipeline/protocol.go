package pipeline

import "context"

// TTS playback states sent to the device. The device drives its UI from these:
// start shows the speaking indicator, sentence_start/sentence_end bracket each
// spoken segment with its transcript, stop returns to idle.
const (
	StateStart         = "start"
	StateSentenceStart = "sentence_start"
	StateSentenceEnd   = "sentence_end"
	StateStop          = "stop"
)

// StatusFrame is one JSON text frame of the device status protocol. Exactly
// one frame per WebSocket text message.
type StatusFrame struct {
	// Type is "stt", "llm", or "tts".
	Type string `json:"type"`

	// State is the playback state for "tts" frames.
	State string `json:"state,omitempty"`

	// Text is the transcript for "stt" and "tts" frames, or the emotion
	// symbol for "llm" frames.
	Text string `json:"text,omitempty"`

	// Emotion is the emotion label for "llm" frames.
	Emotion string `json:"emotion,omitempty"`

	// SessionID identifies the connection session.
	SessionID string `json:"session_id"`
}

// STTFrame announces a recognised user utterance.
func STTFrame(text, sessionID string) StatusFrame {
	return StatusFrame{Type: "stt", Text: text, SessionID: sessionID}
}

// EmotionFrame hints the emotion of the upcoming spoken segment. Text carries
// the rendered symbol (glyph or English token), Emotion the canonical label.
func EmotionFrame(symbol, label, sessionID string) StatusFrame {
	return StatusFrame{Type: "llm", Text: symbol, Emotion: label, SessionID: sessionID}
}

// TTSFrame reports a playback state transition. Text is the segment
// transcript for sentence_start and sentence_end, empty otherwise.
func TTSFrame(state, text, sessionID string) StatusFrame {
	return StatusFrame{Type: "tts", State: state, Text: text, SessionID: sessionID}
}

// Sender is the connection's send half as the pipeline sees it. The server
// package implements it on the device WebSocket; tests substitute a recorder.
//
// Implementations must serialise concurrent calls internally: the pacer and
// the receiver both send on the same peer.
type Sender interface {
	// SendJSON marshals frame and delivers it as one text message.
	SendJSON(ctx context.Context, frame StatusFrame) error

	// SendAudio delivers one encoded audio frame as a binary message.
	SendAudio(ctx context.Context, frame []byte) error

	// ResetIdle refreshes the connection's idle timer. Called by the pacer
	// during long playbacks so keepalive machinery does not cut the link.
	ResetIdle(ctx context.Context) error

	// Close tears the connection down. Used for close-after-chat.
	Close() error
}
