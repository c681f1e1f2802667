package deepgram

import (
	"net/url"
	"testing"

	"github.com/parleyvoice/parley/pkg/provider/asr"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("empty apiKey must be rejected")
	}
}

func TestBuildURLDefaults(t *testing.T) {
	t.Parallel()

	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, err := p.buildURL(asr.StreamConfig{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("model") != defaultModel {
		t.Errorf("model = %q", q.Get("model"))
	}
	if q.Get("language") != defaultLanguage {
		t.Errorf("language = %q", q.Get("language"))
	}
	if q.Get("sample_rate") != "16000" {
		t.Errorf("sample_rate = %q", q.Get("sample_rate"))
	}
	if q.Get("interim_results") != "true" {
		t.Error("interim_results must be requested")
	}
}

func TestBuildURLOverrides(t *testing.T) {
	t.Parallel()

	p, err := New("k", WithModel("base"), WithLanguage("en"))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := p.buildURL(asr.StreamConfig{SampleRate: 8000, Channels: 1, Language: "de-DE"})
	if err != nil {
		t.Fatal(err)
	}
	q, _ := url.Parse(raw)
	if got := q.Query().Get("language"); got != "de-DE" {
		t.Errorf("config language must win, got %q", got)
	}
	if got := q.Query().Get("sample_rate"); got != "8000" {
		t.Errorf("sample_rate = %q", got)
	}
	if got := q.Query().Get("model"); got != "base" {
		t.Errorf("model = %q", got)
	}
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	msg := []byte(`{"type":"Results","is_final":true,` +
		`"channel":{"alternatives":[{"transcript":"你好世界","confidence":0.93}]}}`)
	tr, ok := parseResponse(msg)
	if !ok {
		t.Fatal("expected a transcript")
	}
	if tr.Text != "你好世界" || !tr.IsFinal || tr.Confidence != 0.93 {
		t.Errorf("transcript = %+v", tr)
	}

	if _, ok := parseResponse([]byte(`{"type":"Metadata"}`)); ok {
		t.Error("metadata events must be ignored")
	}
	if _, ok := parseResponse([]byte(`{"type":"Results","channel":{"alternatives":[{"transcript":""}]}}`)); ok {
		t.Error("empty transcripts must be ignored")
	}
	if _, ok := parseResponse([]byte(`not json`)); ok {
		t.Error("garbage must be ignored")
	}
}
