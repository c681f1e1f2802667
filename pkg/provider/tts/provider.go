// Package tts defines the Provider interface for speech synthesis backends.
//
// A provider renders one segment of text into an audio file on local disk.
// The pipeline owns file naming and lifetime: it passes a fresh output path
// per segment, retries failed calls, and deletes the file after playback.
// Success is judged by the file existing with a non-trivial size, so a
// provider that returns nil without producing output is still treated as
// failed by the caller.
//
// Implementations must be safe for concurrent use. One connection may overlap
// synthesis of the next segment with playback of the current one.
package tts

import "context"

// Provider is the abstraction over any synthesis backend.
type Provider interface {
	// Synthesize renders text as speech into a new file at outPath. The file
	// must be complete when Synthesize returns nil; partial output on error is
	// acceptable and is cleaned up by the caller.
	Synthesize(ctx context.Context, text, outPath string) error

	// FileExtension returns the extension, with leading dot, of the files this
	// provider writes (".wav", ".pcm", ".p3"). The pipeline uses it to build
	// output paths and to pick the decode path.
	FileExtension() string

	// Close releases any held connections. Safe to call more than once.
	Close() error
}
