package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
server:
  listen_addr: ":8000"
  metrics_addr: ":9090"
  log_level: debug
  auth_token: "secret"
database:
  dsn: "postgres://parley:pw@localhost:5432/parley?sslmode=disable"
audio:
  format: pcm
  output_dir: "/tmp/parley-audio"
  delete_after_play: true
  synthesis_timeout: 10s
dialog:
  system_prompt: "You are a friendly companion."
  end_prompt: "该休息了，下次再聊。"
  max_output_chars: 5000
  emotion_style: label
  history_window: 10
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  tts:
    name: edge
    voice: zh-CN-XiaoxiaoNeural
  asr:
    name: deepgram
    api_key: dg-test
  vad:
    name: energy
  intent:
    name: keyword
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8000" || cfg.Server.AuthToken != "secret" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Audio.Format != FormatPCM || !cfg.Audio.DeleteAfterPlay {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Audio.SynthesisTimeout.Std() != 10*time.Second {
		t.Errorf("synthesis_timeout = %v", cfg.Audio.SynthesisTimeout)
	}
	if cfg.Dialog.MaxOutputChars != 5000 || cfg.Dialog.EmotionStyle != "label" {
		t.Errorf("dialog = %+v", cfg.Dialog)
	}
	if cfg.Providers.LLM.Model != "gpt-4o-mini" || cfg.Providers.TTS.Voice != "zh-CN-XiaoxiaoNeural" {
		t.Errorf("providers = %+v", cfg.Providers)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	t.Parallel()

	if _, err := LoadFromReader(strings.NewReader("server:\n  listne_addr: \":8000\"\n")); err == nil {
		t.Error("typo in a key must be rejected")
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.ListenAddr != ":8000" {
		t.Errorf("listen_addr default = %q", cfg.Server.ListenAddr)
	}
	if cfg.Audio.Format != FormatOpus {
		t.Errorf("format default = %q", cfg.Audio.Format)
	}
	if cfg.Providers.TTS.Name != "edge" {
		t.Errorf("tts default = %q", cfg.Providers.TTS.Name)
	}
	if cfg.Dialog.EmotionStyle != "emoji" || cfg.Dialog.HistoryWindow != 20 {
		t.Errorf("dialog defaults = %+v", cfg.Dialog)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Server.LogLevel = "loud"
	cfg.Audio.Format = "flac"
	cfg.Dialog.MaxOutputChars = -1
	cfg.Providers.TTS = ProviderEntry{Name: "custom"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_level", "audio.format", "max_output_chars", "base_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q is missing a complaint about %s", err, want)
		}
	}
}

func TestStringOption(t *testing.T) {
	t.Parallel()

	e := ProviderEntry{Options: map[string]any{"template": "{prompt_text}", "n": 3}}
	if got := e.StringOption("template"); got != "{prompt_text}" {
		t.Errorf("template = %q", got)
	}
	if got := e.StringOption("n"); got != "" {
		t.Errorf("non-string option should read as empty, got %q", got)
	}
	if got := e.StringOption("missing"); got != "" {
		t.Errorf("missing option should read as empty, got %q", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "audio")
	cfg := &Config{}
	cfg.Audio.OutputDir = dir
	if err := EnsureDirectories(cfg); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("output dir not created: %v", err)
	}
}
