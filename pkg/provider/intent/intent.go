// Package intent classifies a recognised utterance before it reaches the
// dialog model. The only class the pipeline acts on itself is Exit, which
// ends the session after the farewell finishes playing; everything else flows
// to the model as a normal chat turn.
package intent

import "context"

// Kind is the classification of an utterance.
type Kind string

const (
	// KindChat routes the utterance to the dialog model.
	KindChat Kind = "chat"

	// KindExit ends the session after the current reply is spoken.
	KindExit Kind = "exit"
)

// Result is a classification outcome.
type Result struct {
	// Kind is the detected class.
	Kind Kind

	// Confidence is the recogniser's confidence in [0, 1].
	Confidence float64
}

// Recognizer is the abstraction over any intent backend. One instance is
// shared by every connection; implementations must be safe for concurrent
// use.
type Recognizer interface {
	// Detect classifies text. Unrecognised input must return KindChat rather
	// than an error so the dialog never stalls on a classifier failure.
	Detect(ctx context.Context, text string) (Result, error)
}
