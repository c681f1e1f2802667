package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/parleyvoice/parley/internal/dialog"
	"github.com/parleyvoice/parley/internal/pipeline"
	"github.com/parleyvoice/parley/pkg/provider/asr"
	"github.com/parleyvoice/parley/pkg/provider/llm"
	"github.com/parleyvoice/parley/pkg/provider/tts"
	"github.com/parleyvoice/parley/pkg/provider/vad"
)

// sendTimeout bounds one peer send. A device that stops draining its socket
// for this long is considered gone.
const sendTimeout = 10 * time.Second

// Connection is the server-side state of one device session: the WebSocket
// peer, its per-connection providers, the voice pipeline, and the dialog
// history. It implements [pipeline.Sender].
//
// The receiver goroutine owns Read; SendJSON and SendAudio may be called from
// the pacer and the receiver concurrently and are serialised internally.
type Connection struct {
	ws  *websocket.Conn
	log *slog.Logger

	sessionID string
	deviceID  string
	agentID   string

	// Per-connection providers. LLM and TTS are instantiated per connection
	// because agents override model credentials and voice; the rest is shared
	// and lives on the Server.
	llm llm.Provider
	tts tts.Provider

	pipe    *pipeline.Pipeline
	history *dialog.History
	vadSess vad.SessionHandle
	asrProv asr.Provider

	writeMu sync.Mutex

	// closeOnce guards the teardown path; Read errors and explicit Close can
	// race.
	closeOnce sync.Once
}

var _ pipeline.Sender = (*Connection)(nil)

// SendJSON marshals frame and delivers it as one text message.
func (c *Connection) SendJSON(ctx context.Context, frame pipeline.StatusFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("server: marshal status frame: %w", err)
	}
	return c.send(ctx, websocket.MessageText, data)
}

// SendAudio delivers one encoded audio frame as a binary message.
func (c *Connection) SendAudio(ctx context.Context, frame []byte) error {
	return c.send(ctx, websocket.MessageBinary, frame)
}

func (c *Connection) send(ctx context.Context, typ websocket.MessageType, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.Write(ctx, typ, data); err != nil {
		return fmt.Errorf("server: peer send: %w", err)
	}
	return nil
}

// ResetIdle refreshes the connection's idle timer with a WebSocket ping.
// Called by the pacer during playbacks longer than the keepalive interval.
func (c *Connection) ResetIdle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := c.ws.Ping(ctx); err != nil {
		return fmt.Errorf("server: keepalive ping: %w", err)
	}
	return nil
}

// Close tears the connection down. Safe to call more than once; only the
// first call sends the close frame.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close(websocket.StatusNormalClosure, "bye")
	})
	return err
}
