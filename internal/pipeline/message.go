// Package pipeline implements the per-connection voice pipeline: the staged
// producer/consumer chain that turns incremental model text into
// sentence-segmented synthesis requests, and those into timing-controlled
// audio frame delivery to the device.
//
// # Architecture
//
//	receiver ──Message──▶ TTS worker ──Batch──▶ audio pacer ──frames──▶ device
//
// The receiver goroutine (owned by the server package) submits pipeline
// messages as model output streams in. The TTS worker segments the text,
// synthesizes each segment to a file, decodes it into wire frames, and hands
// frame batches to the pacer. The pacer delivers frames on a fixed 60 ms
// wall-clock schedule and emits the JSON status frames the device renders
// around playback.
//
// Both queues are strictly FIFO, so a sentence's audio can never overtake the
// sentence_start frame that announces it. Barge-in is a per-connection abort
// flag checked at every queue poll and before every frame send; it discards
// queued work without tearing the pipeline down.
package pipeline

// SentenceType marks a message's position within one dialog turn. Every turn
// is bracketed by exactly one First and one Last, with zero or more Middle
// messages between them.
type SentenceType int

const (
	// First opens a turn. Carries no payload; it resets segmenter and
	// synthesis state.
	First SentenceType = iota

	// Middle carries a text fragment or a pre-rendered audio file.
	Middle

	// Last closes a turn. The worker flushes segmenter residue and forwards
	// the marker so the pacer can emit the terminal stop frame.
	Last
)

// String returns the lowercase wire-style name of the sentence type.
func (t SentenceType) String() string {
	switch t {
	case First:
		return "first"
	case Middle:
		return "middle"
	case Last:
		return "last"
	}
	return "unknown"
}

// ContentType selects which payload field of a [Message] is meaningful.
type ContentType int

const (
	// ContentAction is a payload-free control marker. First and Last messages
	// always carry ContentAction.
	ContentAction ContentType = iota

	// ContentText is a model output fragment destined for the segmenter.
	ContentText

	// ContentFile is a pre-rendered audio file to stream as-is, bypassing
	// synthesis. Used for cached prompts and notification sounds.
	ContentFile
)

// Message is one unit on the text queue, from receiver to TTS worker.
type Message struct {
	// SentenceID identifies the turn this message belongs to. All messages of
	// one turn share the ID.
	SentenceID string

	// Sentence is the position marker: First, Middle, or Last.
	Sentence SentenceType

	// Content selects the payload field.
	Content ContentType

	// Text is the model output fragment when Content is ContentText.
	Text string

	// FilePath is the audio file path when Content is ContentFile.
	FilePath string
}

// Batch is one unit on the audio queue, from TTS worker to pacer: the wire
// frames of one spoken segment plus the text they voice. A Last batch has no
// frames; it exists to carry the turn-end marker through the FIFO so the stop
// frame cannot overtake queued audio.
type Batch struct {
	// Sentence is the originating message's position marker.
	Sentence SentenceType

	// Frames holds the encoded wire frames, in play order.
	Frames [][]byte

	// Text is the spoken text of this batch, already filtered. Empty for
	// file-sourced audio and for the Last marker.
	Text string
}
