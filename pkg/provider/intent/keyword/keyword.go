// Package keyword provides a phrase-list intent recogniser. It is the default
// backend: zero latency, no model dependency, and exit phrases are the only
// intent the pipeline needs to act on.
package keyword

import (
	"context"
	"strings"

	"github.com/parleyvoice/parley/pkg/provider/intent"
)

// Ensure Recognizer implements intent.Recognizer at compile time.
var _ intent.Recognizer = (*Recognizer)(nil)

// defaultExitPhrases end the session when the utterance contains one.
var defaultExitPhrases = []string{
	"退出", "再见", "拜拜", "关机", "闭嘴",
	"goodbye", "bye bye", "shut down",
}

// Recognizer matches utterances against a phrase list.
type Recognizer struct {
	exitPhrases []string
}

// New creates a Recognizer. extraExit extends the built-in exit phrase list.
func New(extraExit ...string) *Recognizer {
	phrases := append([]string(nil), defaultExitPhrases...)
	for _, p := range extraExit {
		if p != "" {
			phrases = append(phrases, strings.ToLower(p))
		}
	}
	return &Recognizer{exitPhrases: phrases}
}

// Detect implements intent.Recognizer.
func (r *Recognizer) Detect(ctx context.Context, text string) (intent.Result, error) {
	if err := ctx.Err(); err != nil {
		return intent.Result{}, err
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, p := range r.exitPhrases {
		if strings.Contains(lower, p) {
			return intent.Result{Kind: intent.KindExit, Confidence: 1}, nil
		}
	}
	return intent.Result{Kind: intent.KindChat, Confidence: 1}, nil
}
