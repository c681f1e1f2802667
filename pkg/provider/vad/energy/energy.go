// Package energy provides a dependency-free VAD engine based on short-term
// signal energy with an adaptive noise floor. It is not as accurate as a
// neural detector, but it runs anywhere and is good enough to gate
// recognition and barge-in on close-talking device microphones.
package energy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/parleyvoice/parley/pkg/provider/vad"
)

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

const (
	defaultSilenceFrames = 8 // ~480 ms at 60 ms frames

	// noiseAdapt is the exponential smoothing factor for the noise floor.
	noiseAdapt = 0.05

	// snrForSpeech is the energy ratio over the noise floor that maps to
	// probability 1.0.
	snrForSpeech = 4.0
)

// Engine creates energy-gate sessions.
type Engine struct{}

// New creates an energy VAD engine.
func New() *Engine { return &Engine{} }

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.New("energy: SampleRate must be positive")
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, errors.New("energy: FrameSizeMs must be positive")
	}
	if cfg.SpeechThreshold < 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("energy: SpeechThreshold %v out of [0,1]", cfg.SpeechThreshold)
	}
	threshold := cfg.SpeechThreshold
	if threshold == 0 {
		threshold = 0.5
	}
	silenceFrames := cfg.SilenceFrames
	if silenceFrames == 0 {
		silenceFrames = defaultSilenceFrames
	}
	return &session{
		frameBytes:    cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2,
		threshold:     threshold,
		silenceFrames: silenceFrames,
	}, nil
}

type session struct {
	frameBytes    int
	threshold     float64
	silenceFrames int

	closed     bool
	noiseFloor float64
	inSpeech   bool
	quietRun   int
}

// ProcessFrame implements vad.SessionHandle.
func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	if s.closed {
		return vad.Event{}, errors.New("energy: session is closed")
	}
	if len(frame) != s.frameBytes {
		return vad.Event{}, fmt.Errorf("energy: frame is %d bytes, want %d", len(frame), s.frameBytes)
	}

	rms := frameRMS(frame)
	if s.noiseFloor == 0 {
		s.noiseFloor = rms
	}

	var prob float64
	if s.noiseFloor > 0 {
		snr := rms / s.noiseFloor
		prob = min(max((snr-1)/(snrForSpeech-1), 0), 1)
	}
	isSpeech := prob >= s.threshold

	// Track the noise floor only on quiet frames so speech does not raise it.
	if !isSpeech {
		s.noiseFloor += noiseAdapt * (rms - s.noiseFloor)
	}

	ev := vad.Event{IsSpeech: isSpeech, Probability: prob}
	switch {
	case isSpeech && !s.inSpeech:
		s.inSpeech = true
		s.quietRun = 0
		ev.UtteranceStart = true
	case isSpeech:
		s.quietRun = 0
	case s.inSpeech:
		s.quietRun++
		if s.quietRun >= s.silenceFrames {
			s.inSpeech = false
			s.quietRun = 0
			ev.UtteranceEnd = true
		}
	}
	return ev, nil
}

// Reset implements vad.SessionHandle.
func (s *session) Reset() {
	s.inSpeech = false
	s.quietRun = 0
	s.noiseFloor = 0
}

// Close implements vad.SessionHandle.
func (s *session) Close() error {
	s.closed = true
	return nil
}

// frameRMS computes the root-mean-square amplitude of a 16-bit PCM frame.
func frameRMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(frame[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
