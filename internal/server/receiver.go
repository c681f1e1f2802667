package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/parleyvoice/parley/internal/pipeline"
	"github.com/parleyvoice/parley/internal/text"
	"github.com/parleyvoice/parley/pkg/audio"
	"github.com/parleyvoice/parley/pkg/provider/asr"
	"github.com/parleyvoice/parley/pkg/provider/intent"
)

// transcriptTimeout bounds the wait for the recognition backend to commit a
// transcript after an utterance ends.
const transcriptTimeout = 10 * time.Second

// controlFrame is one inbound JSON text frame from the device.
type controlFrame struct {
	Type  string `json:"type"`
	State string `json:"state,omitempty"`
	Text  string `json:"text,omitempty"`
}

// helloReply answers the device's hello with the session identity and the
// negotiated audio parameters.
type helloReply struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	AudioParams struct {
		Format        string `json:"format"`
		SampleRate    int    `json:"sample_rate"`
		Channels      int    `json:"channels"`
		FrameDuration int    `json:"frame_duration"`
	} `json:"audio_params"`
}

// receiver parses inbound frames from one device and drives recognition and
// dialog turns. It owns the connection's read half; dialog turns run on their
// own goroutine so a streaming model reply never blocks barge-in detection.
type receiver struct {
	s *Server
	c *Connection

	// utterance accumulates mic PCM between VAD boundaries.
	utterance []byte
	inSpeech  bool

	// turnCancel aborts the in-flight dialog turn; turnWG waits for its
	// goroutine so two turns never interleave their pipeline submissions.
	turnCancel context.CancelFunc
	turnWG     sync.WaitGroup
}

func newReceiver(s *Server, c *Connection) *receiver {
	return &receiver{s: s, c: c}
}

// run reads peer frames until the connection drops or ctx is cancelled.
func (r *receiver) run(ctx context.Context) error {
	defer func() {
		if r.turnCancel != nil {
			r.turnCancel()
		}
		r.turnWG.Wait()
	}()

	for {
		typ, data, err := r.c.ws.Read(ctx)
		if err != nil {
			return err
		}
		switch typ {
		case websocket.MessageText:
			if err := r.handleControl(ctx, data); err != nil {
				return err
			}
		case websocket.MessageBinary:
			r.handleAudio(ctx, data)
		}
	}
}

func (r *receiver) handleControl(ctx context.Context, data []byte) error {
	var frame controlFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		r.c.log.Warn("malformed control frame", "error", err)
		return nil
	}

	switch frame.Type {
	case "hello":
		return r.sendHello(ctx)

	case "abort":
		r.c.pipe.Abort(ctx)

	case "listen":
		// "detect" delivers recognised text directly: wake words and typed
		// input skip the audio path entirely.
		if frame.State == "detect" && strings.TrimSpace(frame.Text) != "" {
			r.startTurn(ctx, strings.TrimSpace(frame.Text))
		}

	default:
		r.c.log.Debug("ignoring control frame", "type", frame.Type)
	}
	return nil
}

func (r *receiver) sendHello(ctx context.Context) error {
	reply := helloReply{Type: "hello", SessionID: r.c.sessionID}
	reply.AudioParams.Format = string(r.s.cfg.Audio.Format)
	reply.AudioParams.SampleRate = audio.WireSampleRate
	reply.AudioParams.Channels = audio.WireChannels
	reply.AudioParams.FrameDuration = int(audio.FrameDuration.Milliseconds())

	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("server: marshal hello: %w", err)
	}
	return r.c.send(ctx, websocket.MessageText, data)
}

// handleAudio feeds one mic frame through VAD: speech during playback is a
// barge-in, and a closed utterance goes to recognition.
func (r *receiver) handleAudio(ctx context.Context, frame []byte) {
	if r.c.vadSess == nil {
		return
	}
	ev, err := r.c.vadSess.ProcessFrame(frame)
	if err != nil {
		r.c.log.Warn("vad frame", "error", err)
		return
	}

	if ev.UtteranceStart {
		if r.c.pipe.Speaking() {
			r.c.pipe.Abort(ctx)
		}
		r.inSpeech = true
		r.utterance = r.utterance[:0]
	}
	if r.inSpeech && ev.IsSpeech {
		r.utterance = append(r.utterance, frame...)
	}
	if ev.UtteranceEnd && r.inSpeech {
		r.inSpeech = false
		pcm := make([]byte, len(r.utterance))
		copy(pcm, r.utterance)
		r.utterance = r.utterance[:0]
		r.recognise(ctx, pcm)
	}
}

// recognise transcribes one closed utterance and starts a dialog turn with
// the committed transcript. Recognition failures are logged; the dialog state
// machine stays in Idle and the next utterance retries from scratch.
func (r *receiver) recognise(ctx context.Context, pcm []byte) {
	if r.c.asrProv == nil || len(pcm) == 0 {
		return
	}
	started := time.Now()

	sess, err := r.c.asrProv.StartStream(ctx, asr.StreamConfig{
		SampleRate: audio.WireSampleRate,
		Channels:   audio.WireChannels,
	})
	if err != nil {
		r.c.log.Error("asr stream open", "error", err)
		return
	}
	if err := sess.SendAudio(pcm); err != nil {
		r.c.log.Error("asr send audio", "error", err)
		sess.Close()
		return
	}
	transcript := r.awaitFinal(ctx, sess)
	sess.Close()
	if transcript == "" {
		return
	}

	if r.s.metrics != nil {
		r.s.metrics.ASRDuration.Record(ctx, time.Since(started).Seconds())
	}
	r.startTurn(ctx, transcript)
}

// awaitFinal collects committed transcripts until the backend closes the
// stream or the timeout fires. Multiple finals are joined in arrival order.
func (r *receiver) awaitFinal(ctx context.Context, sess asr.SessionHandle) string {
	timeout := time.NewTimer(transcriptTimeout)
	defer timeout.Stop()

	var parts []string
	finals := sess.Finals()
	for {
		select {
		case t, ok := <-finals:
			if !ok {
				return strings.TrimSpace(strings.Join(parts, " "))
			}
			if t.Text != "" {
				parts = append(parts, t.Text)
			}
		case <-timeout.C:
			r.c.log.Warn("transcript wait timed out")
			return strings.TrimSpace(strings.Join(parts, " "))
		case <-ctx.Done():
			return ""
		}
	}
}

// startTurn supersedes any in-flight turn and launches a new dialog turn for
// the utterance. The previous turn's goroutine is cancelled and awaited first
// so pipeline submissions never interleave.
func (r *receiver) startTurn(ctx context.Context, userText string) {
	if r.turnCancel != nil {
		r.turnCancel()
	}
	r.turnWG.Wait()

	turnCtx, cancel := context.WithCancel(ctx)
	r.turnCancel = cancel
	r.turnWG.Add(1)
	go func() {
		defer r.turnWG.Done()
		r.runTurn(turnCtx, userText)
	}()
}

// runTurn drives one dialog turn: intent check, status frames, model stream,
// pipeline submission, history record.
func (r *receiver) runTurn(ctx context.Context, userText string) {
	exit := false
	if r.s.shared.Intent != nil {
		res, err := r.s.shared.Intent.Detect(ctx, userText)
		if err != nil {
			r.c.log.Warn("intent detect", "error", err)
		}
		exit = res.Kind == intent.KindExit
	}

	if exit {
		r.c.pipe.MarkCloseAfterChat()
		if prompt := r.s.cfg.Dialog.EndPrompt; prompt != "" {
			// The configured farewell is spoken verbatim: a bare start with
			// no transcript surface, then the canned text.
			r.speakVerbatim(ctx, prompt)
			return
		}
		// No canned farewell; let the model say goodbye.
	}

	surface := text.StripPunctuationAndEmoji(userText)
	if err := r.c.SendJSON(ctx, pipeline.STTFrame(surface, r.c.sessionID)); err != nil {
		r.c.log.Warn("send stt frame", "error", err)
		return
	}
	if err := r.c.SendJSON(ctx, pipeline.TTSFrame(pipeline.StateStart, "", r.c.sessionID)); err != nil {
		r.c.log.Warn("send start frame", "error", err)
		return
	}

	messages := r.c.history.Prompt(ctx, userText)
	stream, err := r.c.llm.StreamChat(ctx, messages)
	if err != nil {
		r.c.log.Error("model stream open", "error", err)
		return
	}

	if _, err := r.c.pipe.BeginTurn(ctx); err != nil {
		r.c.log.Warn("begin turn", "error", err)
		drain(stream)
		return
	}

	var reply strings.Builder
	failed := false
	for chunk := range stream {
		if chunk.Err() {
			r.c.log.Error("model stream failed", "detail", chunk.Text)
			failed = true
			break
		}
		if chunk.Text == "" {
			continue
		}
		reply.WriteString(chunk.Text)
		if err := r.c.pipe.PushText(ctx, chunk.Text); err != nil {
			failed = true
			break
		}
	}
	drain(stream)

	r.endTurn(ctx)

	if !failed && reply.Len() > 0 && !r.c.pipe.Aborted() {
		r.c.history.Record(ctx, userText, reply.String())
	}
}

// speakVerbatim plays a canned text without involving the model.
func (r *receiver) speakVerbatim(ctx context.Context, phrase string) {
	if err := r.c.SendJSON(ctx, pipeline.TTSFrame(pipeline.StateStart, "", r.c.sessionID)); err != nil {
		return
	}
	if _, err := r.c.pipe.BeginTurn(ctx); err != nil {
		return
	}
	if err := r.c.pipe.PushText(ctx, phrase); err != nil {
		r.c.log.Warn("push canned phrase", "error", err)
	}
	r.endTurn(ctx)
}

// endTurn closes the pipeline turn even when the turn's context is already
// cancelled, so the pacer still gets its Last marker and emits stop.
func (r *receiver) endTurn(ctx context.Context) {
	endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.c.pipe.EndTurn(endCtx); err != nil {
		r.c.log.Warn("end turn", "error", err)
	}
}

// drain empties a model stream so the provider goroutine can exit.
func drain[T any](ch <-chan T) {
	for range ch {
	}
}
