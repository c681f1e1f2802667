package text

import (
	"strings"
	"unicode"
)

// StripPunctuationAndEmoji removes punctuation, symbols, and emoji from both
// ends of s, leaving interior characters untouched. It backs the transcript
// surface shown to the client (the "stt" frame) and the pre-synthesis edge
// cleanup.
func StripPunctuationAndEmoji(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) ||
			unicode.Is(unicode.So, r)
	})
}
