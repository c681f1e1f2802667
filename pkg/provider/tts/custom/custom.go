// Package custom provides a TTS provider that POSTs to a user-operated HTTP
// synthesis endpoint. The request body is a configurable JSON template in
// which the literal token {prompt_text} is replaced with the segment text, so
// arbitrary self-hosted engines can be wired in without code changes.
package custom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/parleyvoice/parley/pkg/provider/tts"
)

// promptToken is the placeholder replaced with the segment text.
const promptToken = "{prompt_text}"

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// Option configures the Provider.
type Option func(*Provider)

// WithHeaders sets extra request headers, e.g. an Authorization token.
func WithHeaders(h map[string]string) Option {
	return func(p *Provider) {
		p.headers = h
	}
}

// WithFileExtension overrides the extension of the files the endpoint
// returns. Defaults to ".wav".
func WithFileExtension(ext string) Option {
	return func(p *Provider) {
		if ext != "" {
			p.ext = ext
		}
	}
}

// WithTimeout bounds a single synthesis request.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// Provider implements tts.Provider against a generic HTTP endpoint.
type Provider struct {
	url      string
	template string
	headers  map[string]string
	ext      string
	client   *http.Client
}

// New creates a custom HTTP provider. url is the synthesis endpoint; template
// is the JSON request body containing the {prompt_text} placeholder.
func New(url, template string, opts ...Option) (*Provider, error) {
	if url == "" {
		return nil, errors.New("custom: url must not be empty")
	}
	if !strings.Contains(template, promptToken) {
		return nil, fmt.Errorf("custom: request template must contain %s", promptToken)
	}
	p := &Provider{
		url:      url,
		template: template,
		ext:      ".wav",
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// FileExtension reports the configured output extension.
func (p *Provider) FileExtension() string { return p.ext }

// Close is a no-op; the HTTP client holds no per-session state.
func (p *Provider) Close() error { return nil }

// Synthesize POSTs the filled template and streams the response body to
// outPath.
func (p *Provider) Synthesize(ctx context.Context, text, outPath string) error {
	body := strings.ReplaceAll(p.template, promptToken, escapeForJSON(text))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("custom: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("custom: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("custom: endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("custom: create %s: %w", outPath, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("custom: write %s: %w", outPath, err)
	}
	return f.Close()
}

// escapeForJSON makes text safe to splice into the JSON template. Straight
// double quotes with no closing partner are dropped entirely rather than
// escaped, since they are almost always model noise that would otherwise be
// spoken as a literal character by some engines.
func escapeForJSON(text string) string {
	if strings.Count(text, `"`)%2 == 1 {
		text = strings.Replace(text, `"`, "", 1)
	}
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return r.Replace(text)
}
