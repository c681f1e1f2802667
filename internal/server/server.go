// Package server accepts device WebSocket connections and assembles the
// per-connection voice pipeline around each one.
//
// # Architecture
//
// One Server owns the shared provider instances (VAD, ASR, intent, memory)
// and the agent lookup store. Each accepted connection gets its own LLM and
// TTS providers — agents override model credentials and voice, so those two
// cannot be shared — plus a [pipeline.Pipeline], a [dialog.History], and a
// receiver goroutine that parses inbound frames and drives recognition and
// dialog turns.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/parleyvoice/parley/internal/agentstore"
	"github.com/parleyvoice/parley/internal/config"
	"github.com/parleyvoice/parley/internal/dialog"
	"github.com/parleyvoice/parley/internal/emotion"
	"github.com/parleyvoice/parley/internal/metering"
	"github.com/parleyvoice/parley/internal/observe"
	"github.com/parleyvoice/parley/internal/pipeline"
	"github.com/parleyvoice/parley/internal/resilience"
	"github.com/parleyvoice/parley/pkg/provider/asr"
	"github.com/parleyvoice/parley/pkg/provider/intent"
	"github.com/parleyvoice/parley/pkg/provider/llm"
	"github.com/parleyvoice/parley/pkg/provider/memory"
	"github.com/parleyvoice/parley/pkg/provider/tts"
	"github.com/parleyvoice/parley/pkg/provider/vad"
)

// Shared bundles the provider instances created once at startup and shared by
// every connection. Each must be safe for concurrent use.
type Shared struct {
	VAD    vad.Engine
	ASR    asr.Provider
	Intent intent.Recognizer
	Memory memory.Store
}

// Config assembles a Server's dependencies.
type Config struct {
	// Cfg is the loaded server configuration.
	Cfg *config.Config

	// Registry resolves provider names to factories for the per-connection
	// LLM and TTS instances.
	Registry *config.Registry

	// Shared holds the process-wide provider instances.
	Shared Shared

	// Agents resolves agent IDs to personas and voice bindings. Nil disables
	// database-backed agents; every connection then uses the configured
	// defaults.
	Agents *agentstore.Store

	// Metrics records instrumentation. Nil disables it.
	Metrics *observe.Metrics

	// Logger is the root logger. Nil selects slog.Default.
	Logger *slog.Logger
}

// Server accepts device connections and runs one pipeline per connection.
type Server struct {
	cfg     *config.Config
	reg     *config.Registry
	shared  Shared
	agents  *agentstore.Store
	metrics *observe.Metrics
	meter   *metering.Meter
	log     *slog.Logger

	mu    sync.Mutex
	conns map[string]*Connection
}

// New builds a Server. The metering cap comes from the dialog configuration.
func New(c Config) (*Server, error) {
	if c.Cfg == nil {
		return nil, errors.New("server: nil config")
	}
	if c.Registry == nil {
		return nil, errors.New("server: nil registry")
	}
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:     c.Cfg,
		reg:     c.Registry,
		shared:  c.Shared,
		agents:  c.Agents,
		metrics: c.Metrics,
		meter:   metering.New(c.Cfg.Dialog.MaxOutputChars),
		log:     log,
		conns:   make(map[string]*Connection),
	}, nil
}

// ServeHTTP upgrades the request to a WebSocket and runs the connection until
// the peer leaves. Mount it under the path devices dial, e.g. /ws/.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if token := s.cfg.Server.AuthToken; token != "" {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}

	agentID := agentstore.AgentIDFromPath(r.URL.Path)
	deviceID := r.Header.Get("device-id")
	if deviceID == "" {
		deviceID = r.RemoteAddr
	}

	ctx, span := observe.StartSpan(r.Context(), "ws connection")
	defer span.End()
	s.runConnection(ctx, ws, agentID, deviceID)
}

// ActiveSessions returns how many device sessions are currently connected.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// runConnection owns one connection from accept to teardown.
func (s *Server) runConnection(ctx context.Context, ws *websocket.Conn, agentID, deviceID string) {
	sessionID := uuid.NewString()
	log := observe.Logger(ctx, s.log).With("session_id", sessionID, "device_id", deviceID)

	llmProv, ttsProv, systemPrompt, err := s.resolveProviders(ctx, agentID)
	if err != nil {
		log.Error("connection setup failed", "agent_id", agentID, "error", err)
		ws.Close(websocket.StatusInternalError, "setup failed")
		return
	}

	conn := &Connection{
		ws:        ws,
		log:       log,
		sessionID: sessionID,
		deviceID:  deviceID,
		agentID:   agentID,
		llm:       llmProv,
		tts:       ttsProv,
		asrProv:   s.shared.ASR,
	}

	pipe, err := pipeline.New(pipeline.Config{
		SessionID:        sessionID,
		DeviceID:         deviceID,
		Format:           string(s.cfg.Audio.Format),
		OutputDir:        s.cfg.Audio.OutputDir,
		DeleteAfterPlay:  s.cfg.Audio.DeleteAfterPlay,
		SynthesisTimeout: s.cfg.Audio.SynthesisTimeout.Std(),
		NotifySoundPath:  s.cfg.Audio.NotifySoundPath,
		EmotionStyle:     emotion.Style(s.cfg.Dialog.EmotionStyle),
		TTS:              ttsProv,
		Meter:            s.meter,
		Metrics:          s.metrics,
		Report: func(text string, frames int) {
			log.Debug("segment delivered", "chars", len([]rune(text)), "frames", frames)
		},
		Sender: conn,
		Logger: log,
	})
	if err != nil {
		log.Error("pipeline setup failed", "error", err)
		ws.Close(websocket.StatusInternalError, "setup failed")
		return
	}
	conn.pipe = pipe

	conn.history = dialog.NewHistory(dialog.HistoryConfig{
		Store:        s.shared.Memory,
		SessionID:    sessionID,
		DeviceID:     deviceID,
		SystemPrompt: systemPrompt,
		Window:       s.cfg.Dialog.HistoryWindow,
		Logger:       log,
	})

	if s.shared.VAD != nil {
		sess, err := s.shared.VAD.NewSession(vad.Config{
			SampleRate:      16000,
			FrameSizeMs:     60,
			SpeechThreshold: 0.5,
		})
		if err != nil {
			log.Error("vad session setup failed", "error", err)
			ws.Close(websocket.StatusInternalError, "setup failed")
			return
		}
		conn.vadSess = sess
	}

	s.register(conn)
	defer s.teardown(conn)

	if s.metrics != nil {
		s.metrics.SessionStarted(ctx)
	}
	log.Info("device connected", "agent_id", agentID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := pipe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("pipeline stopped", "error", err)
		}
	}()

	recv := newReceiver(s, conn)
	if err := recv.run(ctx); err != nil && websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
		log.Warn("receive loop ended", "error", err)
	}

	cancel()
	pipe.Close()
	<-done

	if s.metrics != nil {
		s.metrics.SessionEnded(context.WithoutCancel(ctx))
	}
	log.Info("device disconnected")
}

func (s *Server) register(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.sessionID] = c
}

// teardown releases everything the connection owns. The session digest write
// gets its own deadline; the peer is already gone.
func (s *Server) teardown(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c.sessionID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.history.Summarise(ctx, c.llm); err != nil {
		c.log.Warn("session digest failed", "error", err)
	}

	if c.vadSess != nil {
		c.vadSess.Close()
	}
	if err := c.tts.Close(); err != nil {
		c.log.Warn("close tts provider", "error", err)
	}
	c.Close()
}

// resolveProviders builds the per-connection LLM and TTS instances. An agent
// binding overrides the configured defaults: its voice row selects the TTS
// provider and voice, and the agent ID stands in for a missing LLM API key so
// provider-side usage is attributable per agent. Agents without a voice
// binding speak with the free Edge voice.
func (s *Server) resolveProviders(ctx context.Context, agentID string) (llm.Provider, tts.Provider, string, error) {
	llmEntry := s.cfg.Providers.LLM
	ttsEntry := s.cfg.Providers.TTS
	systemPrompt := s.cfg.Dialog.SystemPrompt

	if agentID != "" && s.agents != nil {
		agent, err := s.agents.Lookup(ctx, agentID)
		if err != nil {
			return nil, nil, "", fmt.Errorf("resolve agent: %w", err)
		}
		if agent.SystemPrompt != "" {
			systemPrompt = agent.SystemPrompt
		}
		if agent.LLMProvider != "" {
			llmEntry.Name = agent.LLMProvider
		}
		if agent.LLMModel != "" {
			llmEntry.Model = agent.LLMModel
		}
		llmEntry.APIKey = agent.LLMAPIKey
		if llmEntry.APIKey == "" {
			llmEntry.APIKey = agentID
		}

		if agent.HasVoice() {
			ttsEntry = config.ProviderEntry{
				Name:    strings.ToLower(agent.VoiceProvider),
				Voice:   agent.VoiceID,
				APIKey:  agent.VoiceAPIKey,
				BaseURL: agent.VoiceBaseURL,
			}
		} else {
			ttsEntry = config.ProviderEntry{Name: "edge", Voice: ttsEntry.Voice}
		}
	}

	llmProv, err := s.reg.CreateLLM(llmEntry)
	if err != nil {
		return nil, nil, "", fmt.Errorf("create llm provider: %w", err)
	}
	ttsProv, err := s.reg.CreateTTS(ttsEntry)
	if err != nil {
		return nil, nil, "", fmt.Errorf("create tts provider: %w", err)
	}

	// Paid or remote voices fail over to the free Edge voice. Each backend
	// carries its own circuit breaker, so a provider outage degrades the voice
	// instead of muting the session.
	if ttsEntry.Name != "edge" {
		edgeEntry := config.ProviderEntry{Name: "edge", Voice: s.cfg.Providers.TTS.Voice}
		if edgeProv, err := s.reg.CreateTTS(edgeEntry); err == nil {
			fb := resilience.NewTTSFallback(ttsProv, ttsEntry.Name, resilience.FallbackConfig{})
			fb.AddFallback("edge", edgeProv)
			ttsProv = fb
		}
	}
	return llmProv, ttsProv, systemPrompt, nil
}
