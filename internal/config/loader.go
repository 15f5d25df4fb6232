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

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	// Provider availability warnings. A missing provider is not a startup
	// error — the pipeline reports a configuration failure per request — but
	// it is almost certainly unintended in a deployed instance.
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; every transcription request will fail with a configuration error")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; structured generation and title requests will fail with a configuration error")
	}
	if cfg.Providers.STT.Name != "" && cfg.Providers.STT.APIKey == "" {
		slog.Warn("providers.stt.api_key is empty; the provider will reject requests unless the backend is unauthenticated")
	}

	// Pipeline thresholds.
	if cfg.Pipeline.MinAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_audio_bytes %d must not be negative", cfg.Pipeline.MinAudioBytes))
	}
	if cfg.Pipeline.MinTranscriptChars < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_transcript_chars %d must not be negative", cfg.Pipeline.MinTranscriptChars))
	}
	if cfg.Pipeline.MaxTranscriptChars < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_transcript_chars %d must not be negative", cfg.Pipeline.MaxTranscriptChars))
	}
	if min, max := cfg.Pipeline.MinTranscriptChars, cfg.Pipeline.MaxTranscriptChars; min > 0 && max > 0 && min > max {
		errs = append(errs, fmt.Errorf("pipeline.min_transcript_chars %d exceeds pipeline.max_transcript_chars %d", min, max))
	}
	if cfg.Pipeline.RequestTimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("pipeline.request_timeout_sec %d must not be negative", cfg.Pipeline.RequestTimeoutSec))
	}
	if t := cfg.Pipeline.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("pipeline.temperature %.2f is out of range [0, 2]", t))
	}

	// Storage availability.
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; recordings and settings will be kept in memory and lost on restart")
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
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
