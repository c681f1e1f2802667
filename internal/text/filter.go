// Package text implements the spoken-text preparation layer of the voice
// pipeline: the stage-direction filter and the incremental sentence segmenter.
//
// Model output routinely contains stage directions in brackets, quote
// fragments left over from truncation, and markdown scaffolding. None of that
// should be spoken, but the character positions of the removed text still
// anchor the segmenter's cursor so nothing is emitted twice.
package text

import (
	"regexp"
	"strings"
	"unicode"
)

// bracketPattern matches one paired bracket including its content, for both
// the ASCII and fullwidth families. Innermost pairs match first; nested pairs
// are handled by re-applying until the text is stable.
var bracketPattern = regexp.MustCompile(`（[^（）]*）|\([^()]*\)`)

// spaceRun collapses the double spaces left behind by symbol deletion.
var spaceRun = regexp.MustCompile(`[ \t]{2,}`)

// quotePairs maps opening quote runes to their closing partner. Straight
// quotes pair with themselves.
var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'“':  '”',
	'‘':  '’',
}

// sweepSet is the isolated-symbol set deleted outside matched-quote ranges.
var sweepSet = map[rune]bool{
	'\'': true, '‘': true, '’': true,
	'“': true, '”': true, '"': true,
	'(': true, ')': true, '（': true, '）': true,
	'～': true, '~': true,
}

// quoteFamily holds every quote rune. Edge trimming never removes these, so a
// matched pair that survived filtering is never half-stripped.
var quoteFamily = map[rune]bool{
	'"': true, '\'': true, '“': true, '”': true, '‘': true, '’': true,
}

// Filter prepares a raw model-output fragment for synthesis.
//
// It removes paired-bracket stage directions, deletes orphan quotes while
// keeping matched pairs, sweeps stray symbols outside quoted ranges, trims
// edge punctuation (dropping ellipses at the very start or end but keeping
// medial ones verbatim), and trims whitespace.
//
// The empty string means there is nothing speakable. Filter is idempotent:
// Filter(Filter(x)) == Filter(x).
func Filter(raw string) string {
	if raw == "" {
		return ""
	}

	s := RemoveBrackets(raw)
	s = dropOrphanQuotesAndSweep(s)
	s = spaceRun.ReplaceAllString(s, " ")
	s = trimEdges(s)

	if onlyQuotes(s) {
		return ""
	}
	return s
}

// RemoveBrackets deletes every paired （…） or (…) substring, content included.
func RemoveBrackets(s string) string {
	for {
		next := bracketPattern.ReplaceAllString(s, "")
		if next == s {
			return next
		}
		s = next
	}
}

// dropOrphanQuotesAndSweep balances quotes with a stack, deletes unmatched
// openings and closings, and removes isolated symbols outside matched-quote
// ranges.
func dropOrphanQuotesAndSweep(s string) string {
	runes := []rune(s)
	n := len(runes)

	type open struct {
		idx int
		ch  rune
	}
	var stack []open
	del := make([]bool, n)
	paired := make([]bool, n) // inside (inclusive) a matched quote range

	pairRanges := make([][2]int, 0, 4)
	for i, r := range runes {
		closer, isOpen := quotePairs[r]
		switch {
		case isOpen && closer == r:
			// Straight quote: closes an identical open if one is on top.
			if len(stack) > 0 && stack[len(stack)-1].ch == r {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				pairRanges = append(pairRanges, [2]int{top.idx, i})
			} else {
				stack = append(stack, open{i, r})
			}
		case isOpen:
			stack = append(stack, open{i, r})
		case r == '”' || r == '’':
			want := '“'
			if r == '’' {
				want = '‘'
			}
			if len(stack) > 0 && stack[len(stack)-1].ch == want {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				pairRanges = append(pairRanges, [2]int{top.idx, i})
			} else {
				del[i] = true
			}
		}
	}
	for _, o := range stack {
		del[o.idx] = true
	}
	for _, pr := range pairRanges {
		for i := pr[0]; i <= pr[1]; i++ {
			paired[i] = true
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if del[i] {
			continue
		}
		if !paired[i] && sweepSet[r] {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// trimEdges strips punctuation, symbols, emoji, and whitespace from both ends
// of s. Quote runes are never stripped. A leading or trailing ellipsis falls
// to this trim; medial ellipses are untouched.
func trimEdges(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		if quoteFamily[r] {
			return false
		}
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) ||
			unicode.Is(unicode.So, r)
	})
}

// onlyQuotes reports whether s is empty or consists solely of quote-family
// characters and whitespace.
func onlyQuotes(s string) bool {
	for _, r := range s {
		if quoteFamily[r] || unicode.IsSpace(r) {
			continue
		}
		return false
	}
	return true
}

// RemoveParentheses is the relaxed tail cleaner used when flushing residue on
// a stop request: paired brackets and curly double quotes are removed and the
// result trimmed. Returns "" when nothing speakable remains.
func RemoveParentheses(s string) string {
	if s == "" {
		return ""
	}
	s = RemoveBrackets(s)
	s = strings.NewReplacer("“", "", "”", "").Replace(s)
	s = strings.TrimSpace(s)
	return s
}

// EmptyAfterQuoteRemoval reports whether s contains nothing but quote
// characters and whitespace. Passing such residue to a synthesis backend is a
// provider error, so callers skip it.
func EmptyAfterQuoteRemoval(s string) bool {
	if s == "" {
		return true
	}
	cleaned := strings.NewReplacer(`“`, "", `”`, "", `'`, "", `‘`, "", `’`, "").Replace(s)
	return strings.TrimSpace(cleaned) == ""
}
