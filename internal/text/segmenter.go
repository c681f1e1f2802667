package text

import "strings"

// firstSentencePunctuation is the broad cut set used before the first segment
// of a turn has been spoken. Including commas and pause marks minimises the
// time to first audio.
var firstSentencePunctuation = []rune{
	'，', '～', '~', '、', ',', '。', '.', '？', '?', '！', '!', '；', ';', '：',
}

// sentencePunctuation is the sentence-final cut set used for every segment
// after the first.
var sentencePunctuation = []rune{
	'。', '.', '？', '?', '！', '!', '；', ';', '：',
}

// Segmenter consumes an incremental text stream and cuts it into maximal
// sentence-like segments terminated by punctuation from the active cut set.
//
// Bracketed stage directions are absorbed as they complete: the bracket text
// advances the cursor without being spoken, while the text that preceded the
// bracket is carried forward and prepended to the next emission. A bracket
// whose closing half has not arrived yet blocks all emission, so a stage
// direction straddling a chunk boundary is never spoken.
//
// Segmenter is not safe for concurrent use; each connection owns exactly one,
// driven from its TTS worker goroutine.
type Segmenter struct {
	buf           []rune   // full received text
	processed     int      // cursor into buf past consumed content
	bracketsSeen  int      // paired brackets already absorbed
	beforeText    []string // pre-bracket remainders awaiting emission
	firstSentence bool
	stopRequested bool
}

// NewSegmenter returns a Segmenter ready for the first sentence of a turn.
func NewSegmenter() *Segmenter {
	return &Segmenter{firstSentence: true}
}

// Push appends a chunk of model output to the buffer.
func (s *Segmenter) Push(chunk string) {
	s.buf = append(s.buf, []rune(chunk)...)
}

// Reset clears all state for a new turn. Called on a FIRST pipeline message.
func (s *Segmenter) Reset() {
	s.buf = s.buf[:0]
	s.processed = 0
	s.bracketsSeen = 0
	s.beforeText = nil
	s.firstSentence = true
	s.stopRequested = false
}

// RequestStop marks the turn as ending; the next TryEmit may flush a short
// punctuation-free tail.
func (s *Segmenter) RequestStop() { s.stopRequested = true }

// Buffered returns the total number of characters received this turn.
func (s *Segmenter) Buffered() int { return len(s.buf) }

// Processed returns the cursor position. Processed() <= Buffered() always.
func (s *Segmenter) Processed() int { return s.processed }

// TryEmit attempts to cut the next spoken segment.
//
// The second return value reports whether a cut was made. The segment itself
// may be empty when everything in the cut range was filtered away; the cursor
// has still advanced, so callers must not treat an empty segment as "try
// again later".
func (s *Segmenter) TryEmit() (string, bool) {
	full := s.buf

	// An open bracket with no closing half yet: await more text.
	if hasUnpairedBrackets(full) {
		return "", false
	}

	// Absorb the newest completed bracket, if one appeared since last time.
	brackets := pairedBrackets(full)
	if len(brackets) > s.bracketsSeen && len(brackets) > 0 {
		newest := brackets[len(brackets)-1]
		skip := len(full) - s.processed - len(newest)
		if skip < 0 {
			skip = 0
		}
		s.beforeText = append(s.beforeText, string(full[s.processed:s.processed+skip]))
		s.processed += skip + len(newest)
		s.bracketsSeen = len(brackets)
	}

	current := strings.Join(s.beforeText, "") + string(full[s.processed:])

	if EmptyAfterQuoteRemoval(current) {
		return "", false
	}

	set := sentencePunctuation
	if s.firstSentence {
		set = firstSentencePunctuation
	}

	if p := leftmostCut([]rune(current), set); p >= 0 {
		raw := string([]rune(current)[:p+1])
		spoken := Filter(raw)

		// The carried pre-bracket text was already counted into processed when
		// its bracket was absorbed, so it must not advance the cursor twice.
		carriedRunes := []rune(strings.Join(s.beforeText, ""))
		if carried := len(carriedRunes); p+1 >= carried {
			s.processed += (p + 1) - carried
			s.beforeText = nil
		} else {
			// Cut landed inside the carried text: keep the uncut remainder
			// for the next emission. The cursor already covers it.
			s.beforeText = []string{string(carriedRunes[p+1:])}
		}
		s.firstSentence = false
		return spoken, true
	}

	if s.stopRequested && current != "" {
		tail := RemoveParentheses(current)
		s.processed = len(s.buf)
		s.beforeText = nil
		s.bracketsSeen = 0
		s.firstSentence = true
		return tail, tail != ""
	}

	return "", false
}

// Drain flushes whatever residue remains past the cursor. Called on a LAST
// pipeline message, and forced with cleared bracket state when the turn ends
// with an imbalanced bracket stack.
func (s *Segmenter) Drain() (string, bool) {
	remaining := strings.Join(s.beforeText, "") + string(s.buf[s.processed:])
	s.processed = len(s.buf)
	s.beforeText = nil
	s.bracketsSeen = 0
	s.firstSentence = true

	if EmptyAfterQuoteRemoval(remaining) {
		return "", false
	}
	spoken := Filter(remaining)
	return spoken, spoken != ""
}

// leftmostCut returns the index of the leftmost rune in current that belongs
// to the cut set. Dots that form part of an ellipsis run are not cut points,
// so "Wait... ok." cuts only at the final period.
func leftmostCut(current []rune, set []rune) int {
	for i, r := range current {
		if !runeIn(set, r) {
			continue
		}
		if r == '.' && partOfEllipsis(current, i) {
			continue
		}
		return i
	}
	return -1
}

func partOfEllipsis(runes []rune, i int) bool {
	if i > 0 && runes[i-1] == '.' {
		return true
	}
	if i+1 < len(runes) && runes[i+1] == '.' {
		return true
	}
	return false
}

func runeIn(set []rune, r rune) bool {
	for _, m := range set {
		if m == r {
			return true
		}
	}
	return false
}

// hasUnpairedBrackets reports whether text contains a bracket without its
// partner. Matching is strict per family: a '(' closed by '）' counts as
// unpaired.
func hasUnpairedBrackets(text []rune) bool {
	var stack []rune
	for _, r := range text {
		switch r {
		case '(', '（':
			stack = append(stack, r)
		case ')', '）':
			if len(stack) == 0 {
				return true
			}
			left := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if (r == ')' && left != '(') || (r == '）' && left != '（') {
				return true
			}
		}
	}
	return len(stack) > 0
}

// pairedBrackets returns every completed bracket substring in completion
// order (innermost first for nesting), content and delimiters included.
func pairedBrackets(text []rune) [][]rune {
	var matched [][]rune
	type openPos struct {
		idx int
		ch  rune
	}
	var stack []openPos
	for i, r := range text {
		switch r {
		case '(', '（':
			stack = append(stack, openPos{i, r})
		case ')', '）':
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if (r == ')' && top.ch == '(') || (r == '）' && top.ch == '（') {
				matched = append(matched, text[top.idx:i+1])
			}
		}
	}
	return matched
}
