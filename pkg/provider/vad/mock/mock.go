// Package mock provides a test double for the vad.Engine interface.
//
// Use Engine to hand out sessions whose per-frame events are scripted in
// advance, so pipeline tests can force utterance boundaries and barge-in at
// exact frames.
package mock

import (
	"errors"
	"sync"

	"github.com/parleyvoice/parley/pkg/provider/vad"
)

// Ensure the doubles implement their interfaces at compile time.
var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*Session)(nil)
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// NewSessionErr, if non-nil, is returned by NewSession.
	NewSessionErr error

	// Script is copied into each new session as its event sequence.
	Script []vad.Event

	// Sessions records every session handed out, in order.
	Sessions []*Session
}

// NewSession records the call and returns a scripted session.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	s := &Session{Script: append([]vad.Event(nil), e.Script...), Config: cfg}
	e.Sessions = append(e.Sessions, s)
	return s, nil
}

// Session is a scripted vad.SessionHandle. Each ProcessFrame call pops the
// next event from Script; when the script runs out, silence is reported.
type Session struct {
	mu sync.Mutex

	// Script is the remaining event sequence.
	Script []vad.Event

	// Config is the configuration the session was created with.
	Config vad.Config

	// Frames records every frame passed to ProcessFrame.
	Frames [][]byte

	// ResetCalls counts Reset invocations.
	ResetCalls int

	closed bool
}

// ProcessFrame records the frame and pops the next scripted event.
func (s *Session) ProcessFrame(frame []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vad.Event{}, errors.New("mock: session is closed")
	}
	f := make([]byte, len(frame))
	copy(f, frame)
	s.Frames = append(s.Frames, f)
	if len(s.Script) == 0 {
		return vad.Event{}, nil
	}
	ev := s.Script[0]
	s.Script = s.Script[1:]
	return ev, nil
}

// Reset counts the call.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCalls++
}

// Close marks the session closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
