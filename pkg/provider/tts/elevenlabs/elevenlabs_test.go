package elevenlabs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "voice"); err == nil {
		t.Error("empty apiKey must be rejected")
	}
	if _, err := New("key", ""); err == nil {
		t.Error("empty voiceID must be rejected")
	}
}

func TestSynthesizeRequestShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/text-to-speech/voice-1") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "pcm_16000" {
			t.Errorf("output_format = %q", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "key-1" {
			t.Errorf("xi-api-key = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req synthesisRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("body not JSON: %v", err)
		}
		if req.Text != "hello there" || req.ModelID != defaultModel {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte("pcm-bytes"))
	}))
	defer srv.Close()

	p, err := New("key-1", "voice-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "seg.pcm")
	if err := p.Synthesize(context.Background(), "hello there", out); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "pcm-bytes" {
		t.Errorf("output = %q, err %v", data, err)
	}
}

func TestSynthesizeErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "quota exceeded"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := New("key", "voice", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	err = p.Synthesize(context.Background(), "hi", filepath.Join(t.TempDir(), "x.pcm"))
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("want 401 error, got %v", err)
	}
}

func TestOutputFormatRestrictedToPCM(t *testing.T) {
	t.Parallel()

	p, err := New("k", "v")
	if err != nil {
		t.Fatalf("New with default format: %v", err)
	}
	if p.FileExtension() != ".pcm" {
		t.Errorf("default ext = %q, want .pcm", p.FileExtension())
	}

	p, err = New("k", "v", WithOutputFormat("pcm_24000"))
	if err != nil {
		t.Fatalf("New with pcm_24000: %v", err)
	}
	if p.FileExtension() != ".pcm" {
		t.Errorf("pcm_24000 ext = %q, want .pcm", p.FileExtension())
	}

	// Compressed formats would synthesize files the decode stage rejects,
	// silently dropping every segment; they must fail at construction.
	if _, err := New("k", "v", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Error("mp3 output format must be rejected")
	}
}
