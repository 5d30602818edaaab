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
	"transcribe": {"openrouter", "whisper", "whisper-native"},
	"parse":      {"openrouter", "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp"},
	"embeddings": {"openai", "ollama"},
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
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when server.tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when server.tls is set"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("transcribe", cfg.Providers.Transcribe.Name)
	validateProviderName("parse", cfg.Providers.Parse.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Transcriber-specific requirements
	switch cfg.Providers.Transcribe.Name {
	case "":
		slog.Warn("providers.transcribe is not configured; voice capture will be unavailable and transcripts must be typed in")
	case "whisper":
		if cfg.Providers.Transcribe.BaseURL == "" {
			errs = append(errs, errors.New(`providers.transcribe.base_url is required when name is "whisper" (whisper-server address)`))
		}
	case "whisper-native":
		if cfg.Providers.Transcribe.ModelPath == "" {
			errs = append(errs, errors.New(`providers.transcribe.model_path is required when name is "whisper-native"`))
		}
	}

	// Parser availability
	if cfg.Providers.Parse.Name == "" {
		if cfg.Providers.Fallback.Disabled {
			errs = append(errs, errors.New("providers.parse is not configured and providers.fallback is disabled; no way to parse transcripts"))
		} else {
			slog.Warn("providers.parse is not configured; parsing will rely on the local keyword parser only")
		}
	}
	if cfg.Providers.Fallback.MaxDistance < 0 {
		errs = append(errs, fmt.Errorf("providers.fallback.max_distance %d must not be negative", cfg.Providers.Fallback.MaxDistance))
	}

	// Embeddings ↔ storage dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Storage.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but storage.embedding_dimensions is not set; defaulting to 1536")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("providers.embeddings requires storage.postgres_dsn for the pgvector suggestion index"))
	}

	// Storage availability
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; estimates and the price catalog will be kept in memory only")
	}

	// Autosave
	if cfg.Autosave.IntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("autosave.interval_seconds %d must not be negative", cfg.Autosave.IntervalSeconds))
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
