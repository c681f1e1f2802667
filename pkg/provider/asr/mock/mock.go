// Package mock provides a test double for the asr.Provider interface.
//
// Use Provider to script the transcripts a session emits and to verify the
// audio the pipeline forwarded.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/parleyvoice/parley/pkg/provider/asr"
)

// Ensure the doubles implement their interfaces at compile time.
var (
	_ asr.Provider      = (*Provider)(nil)
	_ asr.SessionHandle = (*Session)(nil)
)

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// StartStreamErr, if non-nil, is returned by StartStream.
	StartStreamErr error

	// Sessions records every session handed out, in order.
	Sessions []*Session

	// StartStreamConfigs records the config of every StartStream call.
	StartStreamConfigs []asr.StreamConfig
}

// StartStream records the call and returns a fresh scripted Session.
func (p *Provider) StartStream(ctx context.Context, cfg asr.StreamConfig) (asr.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	s := NewSession()
	p.Sessions = append(p.Sessions, s)
	p.StartStreamConfigs = append(p.StartStreamConfigs, cfg)
	return s, nil
}

// Session is a scripted asr.SessionHandle. Tests push transcripts with
// EmitPartial and EmitFinal and observe forwarded audio in AudioChunks.
type Session struct {
	mu sync.Mutex

	partials chan asr.Transcript
	finals   chan asr.Transcript
	done     chan struct{}
	once     sync.Once

	// AudioChunks records every chunk passed to SendAudio.
	AudioChunks [][]byte
}

// NewSession creates an open scripted session.
func NewSession() *Session {
	return &Session{
		partials: make(chan asr.Transcript, 16),
		finals:   make(chan asr.Transcript, 16),
		done:     make(chan struct{}),
	}
}

// SendAudio records the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("mock: session is closed")
	default:
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.mu.Lock()
	s.AudioChunks = append(s.AudioChunks, c)
	s.mu.Unlock()
	return nil
}

// Partials returns the scripted partial channel.
func (s *Session) Partials() <-chan asr.Transcript { return s.partials }

// Finals returns the scripted final channel.
func (s *Session) Finals() <-chan asr.Transcript { return s.finals }

// EmitPartial delivers an interim transcript to the consumer.
func (s *Session) EmitPartial(text string) {
	s.partials <- asr.Transcript{Text: text}
}

// EmitFinal delivers a committed transcript to the consumer.
func (s *Session) EmitFinal(text string) {
	s.finals <- asr.Transcript{Text: text, IsFinal: true, Confidence: 1}
}

// Close closes both transcript channels. Safe to call more than once.
func (s *Session) Close() error {
	s.once.Do(func() {
		close(s.done)
		close(s.partials)
		close(s.finals)
	})
	return nil
}
