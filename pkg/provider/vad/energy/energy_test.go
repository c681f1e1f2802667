package energy

import (
	"encoding/binary"
	"testing"

	"github.com/parleyvoice/parley/pkg/provider/vad"
)

func pcmFrame(amplitude int16, samples int) []byte {
	b := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func newTestSession(t *testing.T) vad.SessionHandle {
	t.Helper()
	s, err := New().NewSession(vad.Config{
		SampleRate:    16000,
		FrameSizeMs:   60,
		SilenceFrames: 2,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestNewSessionValidation(t *testing.T) {
	t.Parallel()

	e := New()
	if _, err := e.NewSession(vad.Config{FrameSizeMs: 60}); err == nil {
		t.Error("zero sample rate must be rejected")
	}
	if _, err := e.NewSession(vad.Config{SampleRate: 16000}); err == nil {
		t.Error("zero frame size must be rejected")
	}
	if _, err := e.NewSession(vad.Config{SampleRate: 16000, FrameSizeMs: 60, SpeechThreshold: 1.5}); err == nil {
		t.Error("out-of-range threshold must be rejected")
	}
}

func TestUtteranceLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	const samples = 960

	quiet := pcmFrame(50, samples)
	loud := pcmFrame(8000, samples)

	// Establish the noise floor.
	for i := 0; i < 5; i++ {
		ev, err := s.ProcessFrame(quiet)
		if err != nil {
			t.Fatalf("quiet frame: %v", err)
		}
		if ev.IsSpeech {
			t.Fatal("quiet frame classified as speech")
		}
	}

	ev, err := s.ProcessFrame(loud)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.IsSpeech || !ev.UtteranceStart {
		t.Errorf("loud frame after quiet should start an utterance, got %+v", ev)
	}

	if ev, _ = s.ProcessFrame(loud); ev.UtteranceStart {
		t.Error("second speech frame must not restart the utterance")
	}

	// Two quiet frames close the utterance (SilenceFrames: 2).
	if ev, _ = s.ProcessFrame(quiet); ev.UtteranceEnd {
		t.Error("utterance ended one frame early")
	}
	if ev, _ = s.ProcessFrame(quiet); !ev.UtteranceEnd {
		t.Error("utterance did not end after the silence run")
	}
}

func TestWrongFrameSize(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	if _, err := s.ProcessFrame(make([]byte, 10)); err == nil {
		t.Error("wrong frame size must error")
	}
}

func TestClosedSession(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ProcessFrame(pcmFrame(0, 960)); err == nil {
		t.Error("closed session must reject frames")
	}
}
