// Package edge provides a TTS provider backed by the Microsoft Edge read-aloud
// service. It needs no API key, which makes it the fallback voice when an
// agent has no synthesis configured.
//
// The service speaks a framed text protocol over a WebSocket: a speech.config
// message selects the output format, an SSML message carries the text, and the
// audio comes back as binary messages whose payload follows a small header
// block separated by a blank line.
package edge

import (
	"context"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/parleyvoice/parley/pkg/provider/tts"
)

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

const (
	trustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	wsEndpoint         = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1?TrustedClientToken=" + trustedClientToken

	// Raw PCM at the wire rate avoids a transcode after download.
	outputFormat = "raw-16khz-16bit-mono-pcm"

	defaultVoice = "zh-CN-XiaoxiaoNeural"
)

// Option configures the Provider.
type Option func(*Provider)

// WithVoice selects the neural voice, e.g. "en-US-JennyNeural".
func WithVoice(voice string) Option {
	return func(p *Provider) {
		if voice != "" {
			p.voice = voice
		}
	}
}

// WithRate sets the speaking rate as a signed percentage, e.g. "+10%".
func WithRate(rate string) Option {
	return func(p *Provider) {
		if rate != "" {
			p.rate = rate
		}
	}
}

// WithTimeout bounds a single synthesis round trip.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// Provider implements tts.Provider against the Edge read-aloud service. A new
// WebSocket is dialled per segment; the service closes the stream after each
// turn anyway, so there is nothing to pool.
type Provider struct {
	voice   string
	rate    string
	timeout time.Duration
}

// New creates an Edge provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		voice:   defaultVoice,
		rate:    "+0%",
		timeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// FileExtension reports the raw PCM extension.
func (p *Provider) FileExtension() string { return ".pcm" }

// Close is a no-op; connections are per-call.
func (p *Provider) Close() error { return nil }

// Synthesize speaks text into a PCM file at outPath.
func (p *Provider) Synthesize(ctx context.Context, text, outPath string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("edge: empty text")
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsEndpoint+"&ConnectionId="+connectionID(), nil)
	if err != nil {
		return fmt.Errorf("edge: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")
	conn.SetReadLimit(1 << 20)

	if err := conn.Write(ctx, websocket.MessageText, []byte(configMessage())); err != nil {
		return fmt.Errorf("edge: send config: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(ssmlMessage(p.voice, p.rate, text))); err != nil {
		return fmt.Errorf("edge: send ssml: %w", err)
	}

	audio, err := readAudio(ctx, conn)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, audio, 0o644); err != nil {
		return fmt.Errorf("edge: write %s: %w", outPath, err)
	}
	return nil
}

// readAudio collects binary audio payloads until the turn.end text frame.
func readAudio(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var audio []byte
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("edge: read: %w", err)
		}
		switch typ {
		case websocket.MessageText:
			if headerValue(data, "Path") == "turn.end" {
				if len(audio) == 0 {
					return nil, errors.New("edge: turn ended without audio")
				}
				return audio, nil
			}
		case websocket.MessageBinary:
			payload, err := binaryPayload(data)
			if err != nil {
				return nil, err
			}
			audio = append(audio, payload...)
		}
	}
}

// binaryPayload strips the length-prefixed header block from a binary frame
// and returns the audio bytes. Frames on other paths are skipped.
func binaryPayload(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, errors.New("edge: binary frame missing header length")
	}
	headerLen := int(binary.BigEndian.Uint16(data[:2]))
	if 2+headerLen > len(data) {
		return nil, errors.New("edge: binary frame header overruns data")
	}
	if headerValue(data[2:2+headerLen], "Path") != "audio" {
		return nil, nil
	}
	return data[2+headerLen:], nil
}

// headerValue extracts a header from the CRLF-separated key:value block that
// prefixes every service message.
func headerValue(block []byte, key string) string {
	for _, line := range strings.Split(string(block), "\r\n") {
		if k, v, ok := strings.Cut(line, ":"); ok && k == key {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func timestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}

func connectionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func configMessage() string {
	return "X-Timestamp:" + timestamp() + "\r\n" +
		"Content-Type:application/json; charset=utf-8\r\n" +
		"Path:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":` +
		`{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},` +
		`"outputFormat":"` + outputFormat + `"}}}}` + "\r\n"
}

func ssmlMessage(voice, rate, text string) string {
	var escaped strings.Builder
	xml.EscapeText(&escaped, []byte(text))
	ssml := fmt.Sprintf(
		`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>`+
			`<voice name='%s'><prosody pitch='+0Hz' rate='%s' volume='+0%%'>%s</prosody></voice></speak>`,
		voice, rate, escaped.String())
	return "X-RequestId:" + connectionID() + "\r\n" +
		"Content-Type:application/ssml+xml\r\n" +
		"X-Timestamp:" + timestamp() + "Z\r\n" +
		"Path:ssml\r\n\r\n" + ssml
}
