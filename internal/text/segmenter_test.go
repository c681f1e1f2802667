package text

import (
	"strings"
	"testing"
)

// collect pushes each chunk in order and gathers every segment cut after each
// push, mirroring how the TTS worker drives the segmenter.
func collect(s *Segmenter, chunks ...string) []string {
	var segs []string
	for _, c := range chunks {
		s.Push(c)
		for {
			seg, cut := s.TryEmit()
			if !cut {
				break
			}
			if seg != "" {
				segs = append(segs, seg)
			}
		}
	}
	return segs
}

func TestSegmenterFirstSentenceCutsAtComma(t *testing.T) {
	t.Parallel()

	s := NewSegmenter()
	segs := collect(s, "你好，", "世界。")
	want := []string{"你好", "世界"}
	if !equalStrings(segs, want) {
		t.Errorf("segments = %q, want %q", segs, want)
	}
}

func TestSegmenterBracketNeverSpoken(t *testing.T) {
	t.Parallel()

	s := NewSegmenter()
	segs := collect(s,
		"嘿，分析员，",
		"（双手叉腰，昂起头）",
		"有我在，",
		"你还想吃火锅？",
	)

	// The comma cut set applies only to the first segment; everything after it
	// accumulates until sentence-final punctuation.
	want := []string{"嘿", "分析员，有我在，你还想吃火锅"}
	if !equalStrings(segs, want) {
		t.Errorf("segments = %q, want %q", segs, want)
	}
	for _, seg := range segs {
		if strings.ContainsAny(seg, "（）()") || strings.Contains(seg, "叉腰") {
			t.Errorf("bracketed stage direction leaked into %q", seg)
		}
	}
	if s.Processed() != s.Buffered() {
		t.Errorf("cursor %d should have consumed the full buffer %d", s.Processed(), s.Buffered())
	}
}

func TestSegmenterThreeInterleavedBrackets(t *testing.T) {
	t.Parallel()

	s := NewSegmenter()
	segs := collect(s,
		"第一段，",
		"然后（动作一）",
		"继续（动作二）",
		"结束（动作三）",
		"。",
	)

	want := []string{"第一段", "然后继续结束"}
	if !equalStrings(segs, want) {
		t.Errorf("segments = %q, want %q", segs, want)
	}
	joined := strings.Join(segs, "")
	for _, forbidden := range []string{"动作一", "动作二", "动作三"} {
		if strings.Contains(joined, forbidden) {
			t.Errorf("bracket content %q was spoken", forbidden)
		}
	}
	if s.Processed() != s.Buffered() {
		t.Errorf("cursor %d != buffer %d after full consumption", s.Processed(), s.Buffered())
	}
}

func TestSegmenterCutInsideCarriedText(t *testing.T) {
	t.Parallel()

	// One chunk where the trailing bracket absorbs everything before it, so
	// the cut point lands inside the carried pre-bracket text. The text after
	// the cut must survive into the next emission, not vanish with the carry.
	s := NewSegmenter()
	segs := collect(s, "好的。明天见（笑）")
	want := []string{"好的"}
	if !equalStrings(segs, want) {
		t.Fatalf("segments = %q, want %q", segs, want)
	}
	seg, ok := s.Drain()
	if !ok || seg != "明天见" {
		t.Errorf("drain = %q (ok=%v), want %q", seg, ok, "明天见")
	}
	if s.Processed() > s.Buffered() {
		t.Errorf("processed %d exceeds buffer %d", s.Processed(), s.Buffered())
	}
}

func TestSegmenterCarriedRemainderCutBySentenceEnd(t *testing.T) {
	t.Parallel()

	// The carried remainder joins later text and is cut by ordinary
	// sentence-final punctuation without double-advancing the cursor.
	s := NewSegmenter()
	segs := collect(s, "好的。明天见（笑）", "，不见不散。")
	want := []string{"好的", "明天见，不见不散"}
	if !equalStrings(segs, want) {
		t.Errorf("segments = %q, want %q", segs, want)
	}
	if s.Processed() != s.Buffered() {
		t.Errorf("cursor %d != buffer %d after full consumption", s.Processed(), s.Buffered())
	}
}

func TestSegmenterQuotesPairedAcrossChunks(t *testing.T) {
	t.Parallel()

	s := NewSegmenter()
	segs := collect(s, `He said "hi `, `world" now.`)
	want := []string{`He said "hi world" now`}
	if !equalStrings(segs, want) {
		t.Errorf("segments = %q, want %q", segs, want)
	}
}

func TestSegmenterOrphanQuoteDeleted(t *testing.T) {
	t.Parallel()

	s := NewSegmenter()
	segs := collect(s, `Orphan " quote here.`)
	want := []string{"Orphan quote here"}
	if !equalStrings(segs, want) {
		t.Errorf("segments = %q, want %q", segs, want)
	}
}

func TestSegmenterEllipsisNotACutPoint(t *testing.T) {
	t.Parallel()

	s := NewSegmenter()
	segs := collect(s, "Wait...", " ok.")
	want := []string{"Wait... ok"}
	if !equalStrings(segs, want) {
		t.Errorf("segments = %q, want %q", segs, want)
	}
}

func TestSegmenterUnpairedBracketBlocksEmission(t *testing.T) {
	t.Parallel()

	s := NewSegmenter()
	s.Push("你好。（还没闭")
	if seg, cut := s.TryEmit(); cut {
		t.Errorf("expected no emission with an open bracket, got %q", seg)
	}
	s.Push("合）续。")

	var got []string
	for {
		seg, cut := s.TryEmit()
		if !cut {
			break
		}
		if seg != "" {
			got = append(got, seg)
		}
	}
	want := []string{"你好", "续"}
	if !equalStrings(got, want) {
		t.Errorf("segments = %q, want %q", got, want)
	}
}

func TestSegmenterStopRequestFlushesTail(t *testing.T) {
	t.Parallel()

	s := NewSegmenter()
	s.Push("没有标点的尾巴")
	if seg, cut := s.TryEmit(); cut {
		t.Errorf("no cut expected before stop, got %q", seg)
	}
	s.RequestStop()
	seg, cut := s.TryEmit()
	if !cut || seg != "没有标点的尾巴" {
		t.Errorf("stop tail = %q (cut=%v), want %q", seg, cut, "没有标点的尾巴")
	}
	if s.Processed() != s.Buffered() {
		t.Error("stop tail must consume the buffer")
	}
}

func TestSegmenterDrainFlushesResidue(t *testing.T) {
	t.Parallel()

	s := NewSegmenter()
	s.Push("先说完。然后剩一点")
	seg, cut := s.TryEmit()
	if !cut || seg != "先说完" {
		t.Fatalf("first cut = %q (cut=%v)", seg, cut)
	}
	seg, ok := s.Drain()
	if !ok || seg != "然后剩一点" {
		t.Errorf("drain = %q (ok=%v), want %q", seg, ok, "然后剩一点")
	}
	if _, ok := s.Drain(); ok {
		t.Error("second drain should find nothing")
	}
}

func TestSegmenterDrainWithBracketImbalance(t *testing.T) {
	t.Parallel()

	// A turn ending mid-bracket: drain must still flush whatever survives
	// filtering rather than wedge the pipeline.
	s := NewSegmenter()
	s.Push("结尾（没闭合")
	if _, cut := s.TryEmit(); cut {
		t.Fatal("open bracket must block TryEmit")
	}
	seg, ok := s.Drain()
	if !ok {
		t.Fatal("drain should emit the residue")
	}
	if !strings.Contains(seg, "结尾") {
		t.Errorf("drain lost the speakable prefix: %q", seg)
	}
	if s.Processed() != s.Buffered() {
		t.Error("drain must consume the buffer")
	}
}

func TestSegmenterEmptyEmissionStillAdvances(t *testing.T) {
	t.Parallel()

	// A cut whose entire content is filtered away must advance the cursor so
	// the worker loop cannot spin.
	s := NewSegmenter()
	s.Push("～～，后续。")
	seg, cut := s.TryEmit()
	if !cut {
		t.Fatal("expected a cut at the first tilde")
	}
	if seg != "" {
		t.Fatalf("tilde-only cut should filter to empty, got %q", seg)
	}
	if s.Processed() == 0 {
		t.Error("cursor did not advance past the empty emission")
	}

	// Keep cutting: the empty emissions are consumed and the real text follows.
	var got string
	for range 10 {
		seg, cut = s.TryEmit()
		if !cut {
			break
		}
		if seg != "" {
			got = seg
			break
		}
	}
	if got != "后续" {
		t.Errorf("follow-up segment = %q, want %q", got, "后续")
	}
}

func TestSegmenterCursorInvariant(t *testing.T) {
	t.Parallel()

	s := NewSegmenter()
	chunks := []string{"你好，", "（动作）", "继续说，", "最后一句。"}
	for _, c := range chunks {
		s.Push(c)
		for {
			if _, cut := s.TryEmit(); !cut {
				break
			}
			if s.Processed() > s.Buffered() {
				t.Fatalf("processed %d exceeds buffer %d", s.Processed(), s.Buffered())
			}
		}
		if s.Processed() > s.Buffered() {
			t.Fatalf("processed %d exceeds buffer %d", s.Processed(), s.Buffered())
		}
	}
}

func TestSegmenterReset(t *testing.T) {
	t.Parallel()

	s := NewSegmenter()
	collect(s, "旧的内容。")
	s.Reset()
	if s.Buffered() != 0 || s.Processed() != 0 {
		t.Error("reset must clear buffer and cursor")
	}
	segs := collect(s, "新回合，")
	want := []string{"新回合"}
	if !equalStrings(segs, want) {
		t.Errorf("first-sentence comma cut should apply again after reset, got %q", segs)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
