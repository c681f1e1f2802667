// Package config provides the configuration schema, loader, and provider
// registry for the parley voice dialog server.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "10s" or
// "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// AudioFormat selects the wire encoding of downstream audio frames.
type AudioFormat string

const (
	// FormatOpus sends Opus packets, the default for constrained links.
	FormatOpus AudioFormat = "opus"

	// FormatPCM sends raw 16-bit PCM frames.
	FormatPCM AudioFormat = "pcm"
)

// IsValid reports whether f is a recognised audio format.
func (f AudioFormat) IsValid() bool {
	return f == FormatOpus || f == FormatPCM
}

// Config is the root configuration structure for parley. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Audio     AudioConfig     `yaml:"audio"`
	Dialog    DialogConfig    `yaml:"dialog"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the WebSocket server listens on
	// (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr is the address for the /metrics and /healthz endpoints.
	// Empty disables the observability listener.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AuthToken, when set, is required as a Bearer token on every device
	// connection.
	AuthToken string `yaml:"auth_token"`
}

// DatabaseConfig holds the agent/voice lookup database settings.
type DatabaseConfig struct {
	// DSN is the PostgreSQL connection string for agent and voice lookup.
	// Empty disables database-backed agents; every connection then uses the
	// default providers.
	DSN string `yaml:"dsn"`
}

// AudioConfig holds synthesis output and playback settings.
type AudioConfig struct {
	// Format is the wire encoding of downstream frames: "opus" or "pcm".
	Format AudioFormat `yaml:"format"`

	// OutputDir is where synthesized segment files are written before
	// streaming. Created on startup when missing.
	OutputDir string `yaml:"output_dir"`

	// DeleteAfterPlay removes each segment file once it has been streamed.
	DeleteAfterPlay bool `yaml:"delete_after_play"`

	// SynthesisTimeout bounds one synthesis attempt. Zero means 30s.
	SynthesisTimeout Duration `yaml:"synthesis_timeout"`

	// NotifySoundPath is an audio file played after a stop caused by barge-in
	// or shutdown, so the device user hears the turn was cut. Empty disables
	// the cue.
	NotifySoundPath string `yaml:"notify_sound_path"`
}

// DialogConfig holds conversation behaviour settings.
type DialogConfig struct {
	// SystemPrompt is the base persona injected into every conversation.
	SystemPrompt string `yaml:"system_prompt"`

	// EndPrompt, when non-empty, is spoken verbatim when a session is asked
	// to wrap up, instead of asking the model for a farewell.
	EndPrompt string `yaml:"end_prompt"`

	// MaxOutputChars caps the spoken characters per device per day. Zero
	// disables metering.
	MaxOutputChars int `yaml:"max_output_chars"`

	// EmotionStyle selects how emotion labels render: "emoji" or "label".
	EmotionStyle string `yaml:"emotion_style"`

	// HistoryWindow is how many stored turns are loaded into the prompt.
	HistoryWindow int `yaml:"history_window"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each entry selects a named factory registered in the
// [Registry].
type ProvidersConfig struct {
	LLM    ProviderEntry `yaml:"llm"`
	TTS    ProviderEntry `yaml:"tts"`
	ASR    ProviderEntry `yaml:"asr"`
	VAD    ProviderEntry `yaml:"vad"`
	Intent ProviderEntry `yaml:"intent"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "edge",
	// "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g.,
	// "gpt-4o-mini", "nova-3").
	Model string `yaml:"model"`

	// Voice is the provider-specific voice identifier for synthesis backends.
	Voice string `yaml:"voice"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields. Values may be strings, numbers, booleans, or nested
	// maps.
	Options map[string]any `yaml:"options"`
}

// StringOption returns Options[key] as a string, or "" when absent or not a
// string.
func (e ProviderEntry) StringOption(key string) string {
	if s, ok := e.Options[key].(string); ok {
		return s
	}
	return ""
}
