package pipeline

import (
	"context"
	"time"

	"github.com/parleyvoice/parley/internal/emotion"
	"github.com/parleyvoice/parley/internal/text"
	"github.com/parleyvoice/parley/pkg/audio"
)

const (
	// preBufferFrames is the initial burst sent without pacing at the start of
	// a turn, hiding first-frame network variance behind the device's jitter
	// buffer.
	preBufferFrames = 3

	// keepaliveInterval is how often the connection's idle timer is refreshed
	// during playback. Long syntheses otherwise outlive transport idle
	// timeouts.
	keepaliveInterval = 60 * time.Second
)

// pacer is the delivery stage: it consumes frame batches from the audio queue
// and sends them to the device on a fixed per-frame wall-clock schedule,
// wrapping each spoken segment in the sentence_start/sentence_end status
// frames and closing each turn with stop.
type pacer struct {
	p *Pipeline

	// lastKeepalive is when the idle timer was last refreshed.
	lastKeepalive time.Time

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

func newPacer(p *Pipeline) *pacer {
	return &pacer{
		p:     p,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

func (pc *pacer) run(ctx context.Context) error {
	pc.lastKeepalive = pc.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pc.p.stop:
			return nil
		case b := <-pc.p.audio:
			if err := pc.handle(ctx, b); err != nil {
				return err
			}
		}
	}
}

// handle delivers one batch. From the device's perspective the sequence
// sentence_start, frames, sentence_end is atomic: two segments never
// interleave. Send errors tear the pipeline down; the transport is gone.
func (pc *pacer) handle(ctx context.Context, b Batch) error {
	if pc.p.abort.Load() && b.Sentence != Last {
		return nil
	}

	if b.Sentence == Last {
		return pc.finishTurn(ctx)
	}

	// The transcript the device renders is the filtered text. Filtering is
	// idempotent, so text already cleaned by the worker passes unchanged.
	transcript := text.Filter(b.Text)

	if transcript != "" {
		label := emotion.Analyze(transcript)
		symbol := emotion.Symbol(label, pc.p.cfg.EmotionStyle)
		if err := pc.p.cfg.Sender.SendJSON(ctx, EmotionFrame(symbol, label, pc.p.cfg.SessionID)); err != nil {
			return err
		}
	}

	preBuffer := pc.p.firstAudioPending.CompareAndSwap(true, false)
	if preBuffer {
		if pc.p.cfg.Metrics != nil {
			started := time.Unix(0, pc.p.turnStarted.Load())
			pc.p.cfg.Metrics.FirstAudioLatency.Record(ctx, pc.now().Sub(started).Seconds())
		}
	}

	if err := pc.p.cfg.Sender.SendJSON(ctx, TTSFrame(StateSentenceStart, transcript, pc.p.cfg.SessionID)); err != nil {
		return err
	}
	if err := pc.play(ctx, b.Frames, preBuffer); err != nil {
		return err
	}
	if pc.p.cfg.Report != nil {
		pc.p.cfg.Report(transcript, len(b.Frames))
	}
	return pc.p.cfg.Sender.SendJSON(ctx, TTSFrame(StateSentenceEnd, transcript, pc.p.cfg.SessionID))
}

// play sends frames on the 60 ms wall-clock schedule. The schedule is
// anchored to entry time, so synthesis jitter between batches never skews
// playback within one. With preBuffer the first frames go out immediately and
// do not advance the play position.
func (pc *pacer) play(ctx context.Context, frames [][]byte, preBuffer bool) error {
	start := pc.now()
	sent := 0

	if preBuffer {
		for ; sent < preBufferFrames && sent < len(frames); sent++ {
			if err := pc.p.cfg.Sender.SendAudio(ctx, frames[sent]); err != nil {
				return err
			}
		}
	}

	position := time.Duration(0)
	for ; sent < len(frames); sent++ {
		if pc.p.abort.Load() {
			return nil
		}

		if pc.now().Sub(pc.lastKeepalive) > keepaliveInterval {
			if err := pc.p.cfg.Sender.ResetIdle(ctx); err != nil {
				// A failed refresh is not fatal; the send below decides.
				pc.p.log.Warn("keepalive reset failed", "error", err)
			}
			pc.lastKeepalive = pc.now()
		}

		expected := start.Add(position)
		if wait := expected.Sub(pc.now()); wait > 0 {
			pc.sleep(wait)
		}
		if err := pc.p.cfg.Sender.SendAudio(ctx, frames[sent]); err != nil {
			return err
		}
		position += audio.FrameDuration
	}

	if pc.p.cfg.Metrics != nil && sent > 0 {
		pc.p.cfg.Metrics.RecordFramesSent(ctx, int64(sent))
	}
	return nil
}

// finishTurn emits the terminal stop frame, plays the optional notification
// sound, and honours close-after-chat.
func (pc *pacer) finishTurn(ctx context.Context) error {
	if err := pc.p.cfg.Sender.SendJSON(ctx, TTSFrame(StateStop, "", pc.p.cfg.SessionID)); err != nil {
		return err
	}
	pc.p.speaking.Store(false)

	if path := pc.p.cfg.NotifySoundPath; path != "" && !pc.p.abort.Load() {
		if frames, _, err := audio.FileToFrames(path, pc.p.cfg.Format); err != nil {
			pc.p.log.Warn("decode notify sound", "path", path, "error", err)
		} else if err := pc.play(ctx, frames, false); err != nil {
			return err
		}
	}

	if pc.p.closeAfterChat.Load() {
		pc.p.log.Info("closing connection after final turn")
		return pc.p.cfg.Sender.Close()
	}
	return nil
}
