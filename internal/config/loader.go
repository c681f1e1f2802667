package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":    {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":    {"edge", "elevenlabs", "custom"},
	"asr":    {"deepgram"},
	"vad":    {"energy"},
	"intent": {"keyword"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8000"
	}
	if cfg.Audio.Format == "" {
		cfg.Audio.Format = FormatOpus
	}
	if cfg.Audio.OutputDir == "" {
		cfg.Audio.OutputDir = "tmp"
	}
	if cfg.Dialog.EmotionStyle == "" {
		cfg.Dialog.EmotionStyle = "emoji"
	}
	if cfg.Dialog.HistoryWindow == 0 {
		cfg.Dialog.HistoryWindow = 20
	}
	if cfg.Providers.TTS.Name == "" {
		// Edge needs no key, so an empty config still speaks.
		cfg.Providers.TTS.Name = "edge"
	}
	if cfg.Providers.VAD.Name == "" {
		cfg.Providers.VAD.Name = "energy"
	}
	if cfg.Providers.Intent.Name == "" {
		cfg.Providers.Intent.Name = "keyword"
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Audio.Format.IsValid() {
		errs = append(errs, fmt.Errorf("audio.format %q is invalid; valid values: opus, pcm", cfg.Audio.Format))
	}
	if cfg.Audio.SynthesisTimeout < 0 {
		errs = append(errs, fmt.Errorf("audio.synthesis_timeout must not be negative"))
	}
	if cfg.Dialog.MaxOutputChars < 0 {
		errs = append(errs, fmt.Errorf("dialog.max_output_chars must not be negative"))
	}
	if cfg.Dialog.EmotionStyle != "emoji" && cfg.Dialog.EmotionStyle != "label" {
		errs = append(errs, fmt.Errorf("dialog.emotion_style %q is invalid; valid values: emoji, label", cfg.Dialog.EmotionStyle))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("intent", cfg.Providers.Intent.Name)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; sessions cannot generate replies")
	}
	if cfg.Providers.TTS.Name == "custom" && cfg.Providers.TTS.BaseURL == "" {
		errs = append(errs, fmt.Errorf("providers.tts: the custom provider requires base_url"))
	}
	if cfg.Database.DSN == "" {
		slog.Warn("database.dsn is empty; per-agent voices are disabled")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
