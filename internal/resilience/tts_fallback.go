package resilience

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/parleyvoice/parley/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// synthesis backends. Each backend has its own circuit breaker.
//
// Backends may write different file formats. The output path for a segment is
// built from [TTSFallback.FileExtension] before synthesis starts, and the
// decoder picks its path from that extension, so a failover attempt is only
// valid on a backend whose extension matches the path it was handed. Synthesize
// therefore skips mismatched backends within one call; once the primary's
// breaker opens, FileExtension switches to the first healthy backend and
// subsequent segments go there directly.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesis backend. Fallbacks are tried in
// the order they are added, after the primary.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text into outPath using the first healthy backend whose
// output format matches outPath's extension. Format-mismatched backends are
// skipped without charging their breakers.
func (f *TTSFallback) Synthesize(ctx context.Context, text, outPath string) error {
	wantExt := filepath.Ext(outPath)
	matches := func(p tts.Provider) bool {
		return strings.EqualFold(p.FileExtension(), wantExt)
	}
	return f.group.Execute(matches, func(p tts.Provider) error {
		return p.Synthesize(ctx, text, outPath)
	})
}

// FileExtension reports the extension of the first backend whose breaker is not
// open, falling back to the primary's when every breaker has tripped.
func (f *TTSFallback) FileExtension() string {
	for i := range f.group.entries {
		e := &f.group.entries[i]
		if e.breaker.State() != StateOpen {
			return e.value.FileExtension()
		}
	}
	return f.group.entries[0].value.FileExtension()
}

// Close closes every backend, returning the first error encountered.
func (f *TTSFallback) Close() error {
	var firstErr error
	for i := range f.group.entries {
		if err := f.group.entries[i].value.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
