package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	ttsmock "github.com/parleyvoice/parley/pkg/provider/tts/mock"
)

// fakeClock drives the pacer deterministically: sleeping advances time, so
// the schedule can be asserted without wall-clock waits.
type fakeClock struct {
	mu     sync.Mutex
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
}

func pacedPipeline(t *testing.T) (*Pipeline, *recordSender, *fakeClock) {
	t.Helper()
	p, sender := newTestPipeline(t, &ttsmock.Provider{})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p.pacer.now = clock.now
	p.pacer.sleep = clock.sleep
	p.pacer.lastKeepalive = clock.t
	return p, sender, clock
}

func TestPlayPreBufferBurstThenSteadySchedule(t *testing.T) {
	t.Parallel()

	p, sender, clock := pacedPipeline(t)
	frames := make([][]byte, 10)
	for i := range frames {
		frames[i] = []byte{byte(i)}
	}

	if err := p.pacer.play(context.Background(), frames, true); err != nil {
		t.Fatalf("play: %v", err)
	}

	if n := sender.audioCount(); n != 10 {
		t.Fatalf("frames sent = %d, want 10", n)
	}

	// Three pre-buffer frames plus the first paced frame go out with no
	// sleep; the remaining six are each held for one frame duration.
	if len(clock.sleeps) != 6 {
		t.Fatalf("sleeps = %v, want 6 entries", clock.sleeps)
	}
	for i, d := range clock.sleeps {
		if d != 60*time.Millisecond {
			t.Errorf("sleep[%d] = %v, want 60ms", i, d)
		}
	}
}

func TestPlayWithoutPreBufferPacesEveryFrame(t *testing.T) {
	t.Parallel()

	p, sender, clock := pacedPipeline(t)
	frames := [][]byte{{0}, {1}, {2}, {3}}

	if err := p.pacer.play(context.Background(), frames, false); err != nil {
		t.Fatalf("play: %v", err)
	}
	if n := sender.audioCount(); n != 4 {
		t.Fatalf("frames sent = %d, want 4", n)
	}
	// First frame is due immediately; three sleeps for the rest.
	if len(clock.sleeps) != 3 {
		t.Errorf("sleeps = %v, want 3 entries", clock.sleeps)
	}
}

func TestPlayAbortStopsMidBatch(t *testing.T) {
	t.Parallel()

	p, sender, _ := pacedPipeline(t)
	frames := make([][]byte, 20)
	for i := range frames {
		frames[i] = []byte{byte(i)}
	}

	// Abort raised before playback: the pre-buffer burst is already
	// committed, every paced frame checks the flag first.
	p.abort.Store(true)
	if err := p.pacer.play(context.Background(), frames, true); err != nil {
		t.Fatalf("play: %v", err)
	}
	if n := sender.audioCount(); n > preBufferFrames {
		t.Errorf("frames sent = %d, want at most the %d pre-buffer frames", n, preBufferFrames)
	}
}

func TestPlayKeepaliveResetDuringLongPlayback(t *testing.T) {
	t.Parallel()

	p, sender, clock := pacedPipeline(t)
	// Pretend the idle timer has not been refreshed for over a minute.
	p.pacer.lastKeepalive = clock.t.Add(-keepaliveInterval - time.Second)

	if err := p.pacer.play(context.Background(), [][]byte{{0}, {1}}, false); err != nil {
		t.Fatalf("play: %v", err)
	}
	if got := sender.idleResets(); got != 1 {
		t.Errorf("idle resets = %d, want 1", got)
	}
	// The refresh timestamp moved, so the next frame does not refresh again.
	if p.pacer.lastKeepalive.Before(clock.t.Add(-time.Second)) {
		t.Error("lastKeepalive not advanced after reset")
	}
}
