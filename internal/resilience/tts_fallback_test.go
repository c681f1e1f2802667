package resilience

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	ttsmock "github.com/parleyvoice/parley/pkg/provider/tts/mock"
)

func TestTTSFallbackPrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Ext: ".pcm", Audio: []byte("primary-audio")}
	secondary := &ttsmock.Provider{Ext: ".pcm", Audio: []byte("fallback-audio")}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	out := filepath.Join(t.TempDir(), "seg.pcm")
	if err := fb.Synthesize(context.Background(), "hello", out); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "primary-audio" {
		t.Errorf("output = %q, want primary-audio", data)
	}
	if n := len(secondary.Calls()); n != 0 {
		t.Errorf("secondary called %d times, want 0", n)
	}
}

func TestTTSFallbackFailsOverToSecondary(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Ext: ".pcm", FailTimes: 100}
	secondary := &ttsmock.Provider{Ext: ".pcm", Audio: []byte("fallback-audio")}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	out := filepath.Join(t.TempDir(), "seg.pcm")
	if err := fb.Synthesize(context.Background(), "hello", out); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "fallback-audio" {
		t.Errorf("output = %q, want fallback-audio", data)
	}
	if n := len(primary.Calls()); n != 1 {
		t.Errorf("primary called %d times, want 1", n)
	}
}

func TestTTSFallbackSkipsFormatMismatch(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Ext: ".mp3", Audio: []byte("mp3-audio")}
	secondary := &ttsmock.Provider{Ext: ".pcm", Audio: []byte("pcm-audio")}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	// A .pcm path can only be served by the pcm backend.
	out := filepath.Join(t.TempDir(), "seg.pcm")
	if err := fb.Synthesize(context.Background(), "hello", out); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if n := len(primary.Calls()); n != 0 {
		t.Errorf("mismatched primary called %d times, want 0", n)
	}
	if n := len(secondary.Calls()); n != 1 {
		t.Errorf("secondary called %d times, want 1", n)
	}
}

func TestTTSFallbackAllFailed(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Ext: ".pcm", FailTimes: 100}
	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	out := filepath.Join(t.TempDir(), "seg.pcm")
	err := fb.Synthesize(context.Background(), "hello", out)
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
}

func TestTTSFallbackExtensionFollowsBreakerState(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Ext: ".mp3", FailTimes: 100}
	secondary := &ttsmock.Provider{Ext: ".pcm", Audio: []byte("pcm-audio")}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	fb.AddFallback("secondary", secondary)

	if ext := fb.FileExtension(); ext != ".mp3" {
		t.Fatalf("ext before failures = %q, want .mp3", ext)
	}

	// Trip the primary's breaker: two failed segments against the mp3 path.
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		fb.Synthesize(context.Background(), "hello", filepath.Join(dir, "seg.mp3"))
	}

	// The primary is now open; new segments should be built for the fallback.
	if ext := fb.FileExtension(); ext != ".pcm" {
		t.Fatalf("ext after breaker opened = %q, want .pcm", ext)
	}
	out := filepath.Join(dir, "seg.pcm")
	if err := fb.Synthesize(context.Background(), "hello", out); err != nil {
		t.Fatalf("Synthesize after failover: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "pcm-audio" {
		t.Errorf("output = %q, want pcm-audio", data)
	}
}

func TestTTSFallbackCloseClosesAll(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Ext: ".pcm"}
	secondary := &ttsmock.Provider{Ext: ".pcm"}
	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	if err := fb.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !primary.Closed || !secondary.Closed {
		t.Errorf("closed = %v/%v, want true/true", primary.Closed, secondary.Closed)
	}
}
