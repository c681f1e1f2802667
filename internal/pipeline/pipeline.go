package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parleyvoice/parley/internal/emotion"
	"github.com/parleyvoice/parley/internal/metering"
	"github.com/parleyvoice/parley/internal/observe"
	"github.com/parleyvoice/parley/pkg/provider/tts"
)

const (
	// textQueueDepth absorbs a fast model streaming ahead of synthesis.
	textQueueDepth = 64

	// audioQueueDepth bounds how far synthesis may run ahead of playback.
	// Small on purpose: a barge-in should not have minutes of queued audio to
	// discard.
	audioQueueDepth = 8
)

// ErrClosed is returned by submit methods after the pipeline has shut down.
var ErrClosed = errors.New("pipeline: closed")

// Config assembles everything one connection's pipeline needs. All fields are
// fixed for the life of the connection; per-agent overrides are resolved
// before the pipeline is built.
type Config struct {
	// SessionID is the connection's session identifier, echoed in every
	// status frame.
	SessionID string

	// DeviceID identifies the physical device for output metering.
	DeviceID string

	// Format is the wire encoding of audio frames: "pcm" or "opus".
	Format string

	// OutputDir is where synthesized segment files are written.
	OutputDir string

	// DeleteAfterPlay removes segment files once decoded.
	DeleteAfterPlay bool

	// SynthesisTimeout bounds one synthesis attempt. Zero means 30 s.
	SynthesisTimeout time.Duration

	// NotifySoundPath, when non-empty, is an audio file played after the
	// terminal stop frame.
	NotifySoundPath string

	// EmotionStyle selects glyph or English emotion symbols.
	EmotionStyle emotion.Style

	// TTS is the synthesis backend for this connection.
	TTS tts.Provider

	// Meter caps spoken output per device. Nil disables metering.
	Meter *metering.Meter

	// Metrics records pipeline instrumentation. Nil disables it.
	Metrics *observe.Metrics

	// Report, when set, is called by the pacer after each spoken segment with
	// the segment text and the number of frames delivered. Hook for usage
	// reporting.
	Report func(text string, frames int)

	// Sender is the connection's send half.
	Sender Sender

	// Logger is the per-connection logger.
	Logger *slog.Logger
}

// Pipeline owns one connection's TTS worker and audio pacer, the two FIFO
// queues between them, and the shared abort and close-after-chat flags.
//
// The submit methods (BeginTurn, PushText, PushFile, EndTurn) are called from
// the receiver goroutine; Abort may be called from any goroutine.
type Pipeline struct {
	cfg Config
	log *slog.Logger

	texts chan Message
	audio chan Batch

	worker *worker
	pacer  *pacer

	// abort is the barge-in flag. Both stages poll it and discard queued work
	// while it is set; the next First clears it.
	abort atomic.Bool

	// closeAfterChat makes the pacer close the peer after the terminal stop
	// frame of the current turn.
	closeAfterChat atomic.Bool

	// speaking is true from the first spoken segment of a turn until its stop
	// frame. The receiver consults it to decide whether device speech is a
	// barge-in.
	speaking atomic.Bool

	// firstAudioPending arms the pre-buffer burst for the next spoken
	// segment. Set on First, cleared by the pacer.
	firstAudioPending atomic.Bool

	// turnID is the current turn's sentence identifier.
	turnID atomic.Value // string

	// turnSeq feeds monotonic sentence identifiers.
	turnSeq atomic.Int64

	// turnStarted timestamps BeginTurn for the first-audio latency metric.
	turnStarted atomic.Int64 // unix nanos

	stop chan struct{}
	done chan struct{}
}

// New builds a pipeline for one connection. Call [Pipeline.Run] to start the
// worker and pacer; the pipeline is inert until then.
func New(cfg Config) (*Pipeline, error) {
	if cfg.TTS == nil {
		return nil, errors.New("pipeline: nil TTS provider")
	}
	if cfg.Sender == nil {
		return nil, errors.New("pipeline: nil sender")
	}
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Pipeline{
		cfg:   cfg,
		log:   cfg.Logger,
		texts: make(chan Message, textQueueDepth),
		audio: make(chan Batch, audioQueueDepth),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	p.turnID.Store("")
	p.worker = newWorker(p)
	p.pacer = newPacer(p)
	return p, nil
}

// Run starts the TTS worker and the audio pacer and blocks until both exit.
// They exit when ctx is cancelled, [Pipeline.Close] is called, or the peer
// send half fails. The first error wins.
func (p *Pipeline) Run(ctx context.Context) error {
	defer close(p.done)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.worker.run(ctx) })
	g.Go(func() error { return p.pacer.run(ctx) })
	return g.Wait()
}

// Close signals both stages to exit at their next poll and waits for them.
// Safe to call more than once.
func (p *Pipeline) Close() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	<-p.done
}

// BeginTurn opens a new dialog turn and returns its sentence identifier. It
// clears the barge-in flag from the previous turn and arms the pre-buffer
// burst for the first spoken segment.
func (p *Pipeline) BeginTurn(ctx context.Context) (string, error) {
	id := fmt.Sprintf("%s-%d", p.cfg.SessionID, p.turnSeq.Add(1))
	p.turnID.Store(id)
	p.turnStarted.Store(time.Now().UnixNano())
	p.firstAudioPending.Store(true)
	p.speaking.Store(true)
	p.abort.Store(false)
	return id, p.submit(ctx, Message{SentenceID: id, Sentence: First, Content: ContentAction})
}

// PushText submits one model output fragment to the current turn.
func (p *Pipeline) PushText(ctx context.Context, fragment string) error {
	return p.submit(ctx, Message{
		SentenceID: p.currentTurn(),
		Sentence:   Middle,
		Content:    ContentText,
		Text:       fragment,
	})
}

// PushFile submits a pre-rendered audio file to the current turn. Any
// buffered text is flushed and spoken first.
func (p *Pipeline) PushFile(ctx context.Context, path string) error {
	return p.submit(ctx, Message{
		SentenceID: p.currentTurn(),
		Sentence:   Middle,
		Content:    ContentFile,
		FilePath:   path,
	})
}

// EndTurn closes the current turn. Residual text is flushed to synthesis and
// the terminal stop frame follows the last audio batch through the queues.
func (p *Pipeline) EndTurn(ctx context.Context) error {
	return p.submit(ctx, Message{SentenceID: p.currentTurn(), Sentence: Last, Content: ContentAction})
}

// Abort raises the barge-in flag. Queued text and audio are discarded until
// the next BeginTurn; at most one frame already in flight is still delivered.
func (p *Pipeline) Abort(ctx context.Context) {
	if p.abort.Swap(true) {
		return
	}
	p.log.Info("barge-in: discarding queued audio")
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordBargeIn(ctx)
	}
}

// Aborted reports whether the barge-in flag is currently raised.
func (p *Pipeline) Aborted() bool { return p.abort.Load() }

// Speaking reports whether the device is currently being spoken to.
func (p *Pipeline) Speaking() bool { return p.speaking.Load() }

// MarkCloseAfterChat makes the pacer close the peer once the current turn's
// terminal stop frame has been sent. Used when the user says goodbye.
func (p *Pipeline) MarkCloseAfterChat() { p.closeAfterChat.Store(true) }

func (p *Pipeline) currentTurn() string {
	id, _ := p.turnID.Load().(string)
	return id
}

// submit enqueues m on the text queue, giving up when the pipeline stops or
// ctx is cancelled. A full queue therefore backpressures the model stream
// instead of dropping fragments.
func (p *Pipeline) submit(ctx context.Context, m Message) error {
	select {
	case p.texts <- m:
		return nil
	case <-p.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
