// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to control what Synthesize writes and to verify which text and
// output paths the pipeline passed in. FailTimes makes the first N calls fail,
// which is how the retry loop is exercised.
//
// Example:
//
//	p := &mock.Provider{Audio: []byte("fake-pcm"), FailTimes: 2}
//	err := p.Synthesize(ctx, "hello", filepath.Join(dir, "seg.wav"))
package mock

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/parleyvoice/parley/pkg/provider/tts"
)

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the segment text passed to Synthesize.
	Text string
	// OutPath is the output path passed to Synthesize.
	OutPath string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Audio is the file content written on a successful Synthesize. When nil a
	// small placeholder payload is written so size checks pass.
	Audio []byte

	// Ext is returned by FileExtension. Defaults to ".wav".
	Ext string

	// SynthesizeErr, if non-nil, is returned by every failing Synthesize call.
	// Defaults to a generic error.
	SynthesizeErr error

	// FailTimes makes the first N Synthesize calls fail before succeeding.
	FailTimes int

	// WritePartialOnFail, when set, writes a truncated file before returning
	// the error, mimicking a provider that died mid-stream.
	WritePartialOnFail bool

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// Closed reports whether Close was called.
	Closed bool

	failed int
}

// Synthesize records the call, honours FailTimes, and writes Audio to outPath
// on success.
func (p *Provider) Synthesize(ctx context.Context, text, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, OutPath: outPath})
	mustFail := p.failed < p.FailTimes
	if mustFail {
		p.failed++
	}
	audio := p.Audio
	failErr := p.SynthesizeErr
	partial := p.WritePartialOnFail
	p.mu.Unlock()

	if mustFail {
		if partial {
			_ = os.WriteFile(outPath, []byte{0}, 0o644)
		}
		if failErr == nil {
			failErr = errors.New("mock: synthesis failed")
		}
		return failErr
	}

	if audio == nil {
		audio = []byte("mock-audio-payload")
	}
	return os.WriteFile(outPath, audio, 0o644)
}

// FileExtension returns Ext, defaulting to ".wav".
func (p *Provider) FileExtension() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Ext == "" {
		return ".wav"
	}
	return p.Ext
}

// Close marks the provider closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Calls returns a copy of the recorded Synthesize calls. Thread-safe.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}

// Reset clears recorded calls and the failure counter. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.failed = 0
	p.Closed = false
}
