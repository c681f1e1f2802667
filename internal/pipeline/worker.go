package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parleyvoice/parley/internal/text"
	"github.com/parleyvoice/parley/pkg/audio"
)

// synthesisRetries is how many times one segment is attempted before it is
// dropped. The Last marker still flows after a drop, so a dead provider
// degrades to silence rather than a hung turn.
const synthesisRetries = 5

// worker is the synthesis stage: it consumes pipeline messages from the text
// queue, cuts spoken segments with the segmenter, renders each segment to a
// file, decodes the file into wire frames, and enqueues frame batches for the
// pacer.
type worker struct {
	p   *Pipeline
	seg *text.Segmenter
}

func newWorker(p *Pipeline) *worker {
	return &worker{p: p, seg: text.NewSegmenter()}
}

func (w *worker) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.p.stop:
			return nil
		case m := <-w.p.texts:
			if err := w.handle(ctx, m); err != nil {
				return err
			}
		}
	}
}

// handle processes one pipeline message. Returns an error only for conditions
// that must tear the pipeline down (context cancellation, closed audio
// queue); synthesis failures are logged and absorbed.
func (w *worker) handle(ctx context.Context, m Message) error {
	// Barge-in: drop queued work until the next turn. The Last marker still
	// flows so the pacer can emit the terminal stop frame.
	if w.p.abort.Load() && m.Sentence != First {
		if m.Sentence == Last {
			w.seg.Reset()
			return w.enqueue(ctx, Batch{Sentence: Last})
		}
		return nil
	}

	switch m.Sentence {
	case First:
		w.seg.Reset()
		return nil

	case Middle:
		if m.Content == ContentFile {
			return w.handleFile(ctx, m.FilePath)
		}
		w.seg.Push(m.Text)
		return w.emitReady(ctx)

	case Last:
		w.seg.RequestStop()
		if err := w.emitReady(ctx); err != nil {
			return err
		}
		if residue, ok := w.seg.Drain(); ok {
			if err := w.speak(ctx, residue); err != nil {
				return err
			}
		}
		return w.enqueue(ctx, Batch{Sentence: Last})
	}
	return nil
}

// emitReady drains every segment the segmenter can currently cut. An empty
// emission has still consumed buffered input, so the loop always terminates.
func (w *worker) emitReady(ctx context.Context) error {
	for {
		if w.p.abort.Load() {
			return nil
		}
		seg, cut := w.seg.TryEmit()
		if !cut {
			return nil
		}
		if seg == "" {
			continue
		}
		if err := w.speak(ctx, seg); err != nil {
			return err
		}
	}
}

// handleFile flushes buffered text, then streams a pre-rendered file. The
// flush keeps spoken order aligned with submission order.
func (w *worker) handleFile(ctx context.Context, path string) error {
	if residue, ok := w.seg.Drain(); ok {
		if err := w.speak(ctx, residue); err != nil {
			return err
		}
	}
	frames, _, err := audio.FileToFrames(path, w.p.cfg.Format)
	if err != nil {
		w.p.log.Error("decode pre-rendered file", "path", path, "error", err)
		return nil
	}
	return w.enqueue(ctx, Batch{Sentence: Middle, Frames: frames})
}

// speak renders one segment and enqueues its frames. Synthesis failures after
// all retries drop the segment; decode failures drop it too. Both leave the
// pipeline running.
func (w *worker) speak(ctx context.Context, segment string) error {
	// Markdown scaffolding survives the punctuation filter; strip it here so
	// headings and code fences are never voiced.
	segment = text.CleanMarkdown(segment)
	if segment == "" {
		return nil
	}
	if w.p.cfg.Meter != nil && !w.p.cfg.Meter.Charge(w.p.cfg.DeviceID, len([]rune(segment))) {
		w.p.log.Warn("device over daily output cap, dropping segment",
			"device_id", w.p.cfg.DeviceID)
		return nil
	}

	path := filepath.Join(w.p.cfg.OutputDir, uuid.NewString()+w.p.cfg.TTS.FileExtension())
	if err := w.synthesize(ctx, segment, path); err != nil {
		w.p.log.Error("synthesis exhausted retries, dropping segment",
			"text", segment, "error", err)
		if w.p.cfg.Metrics != nil {
			w.p.cfg.Metrics.RecordSynthesisFailure(ctx, w.p.cfg.Format)
		}
		return nil
	}

	decodeStart := time.Now()
	frames, _, err := audio.FileToFrames(path, w.p.cfg.Format)
	w.removeOutput(path)
	if err != nil {
		w.p.log.Error("decode synthesized file", "path", path, "error", err)
		return nil
	}
	if w.p.cfg.Metrics != nil {
		w.p.cfg.Metrics.RecordDecode(ctx, w.p.cfg.Format, time.Since(decodeStart))
	}

	return w.enqueue(ctx, Batch{Sentence: Middle, Frames: frames, Text: segment})
}

// synthesize calls the provider with bounded retries. Success means the
// output file exists with content; a provider that returned nil without
// writing anything counts as failed. Partial files are removed between
// attempts.
func (w *worker) synthesize(ctx context.Context, segment, path string) error {
	var lastErr error
	for attempt := 1; attempt <= synthesisRetries; attempt++ {
		if w.p.abort.Load() {
			return fmt.Errorf("aborted before attempt %d", attempt)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, w.p.cfg.SynthesisTimeout)
		start := time.Now()
		err := w.p.cfg.TTS.Synthesize(attemptCtx, segment, path)
		cancel()

		if err == nil {
			if info, statErr := os.Stat(path); statErr == nil && info.Size() > 0 {
				if w.p.cfg.Metrics != nil {
					w.p.cfg.Metrics.RecordSynthesis(ctx, w.p.cfg.Format, time.Since(start))
				}
				return nil
			}
			err = fmt.Errorf("provider reported success but wrote no file")
		}
		lastErr = err
		os.Remove(path)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.p.log.Warn("synthesis attempt failed",
			"attempt", attempt, "of", synthesisRetries, "error", err)
	}
	return fmt.Errorf("%d attempts: %w", synthesisRetries, lastErr)
}

// removeOutput deletes a segment file after decoding, but only when deletion
// is enabled and the file lives under the configured output directory. Files
// from elsewhere (cached prompts, notification sounds) are never touched.
func (w *worker) removeOutput(path string) {
	if !w.p.cfg.DeleteAfterPlay {
		return
	}
	dir := filepath.Clean(w.p.cfg.OutputDir)
	if dir == "" || dir == "." {
		return
	}
	if !strings.HasPrefix(filepath.Clean(path), dir+string(filepath.Separator)) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.p.log.Warn("remove segment file", "path", path, "error", err)
	}
}

// enqueue puts a batch on the audio queue, respecting shutdown.
func (w *worker) enqueue(ctx context.Context, b Batch) error {
	select {
	case w.p.audio <- b:
		return nil
	case <-w.p.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
