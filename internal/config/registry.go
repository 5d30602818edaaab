package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/velesk/smetka/pkg/provider/embeddings"
	embedollama "github.com/velesk/smetka/pkg/provider/embeddings/ollama"
	embedopenai "github.com/velesk/smetka/pkg/provider/embeddings/openai"
	"github.com/velesk/smetka/pkg/provider/parse"
	"github.com/velesk/smetka/pkg/provider/parse/anyllm"
	parseopenrouter "github.com/velesk/smetka/pkg/provider/parse/openrouter"
	"github.com/velesk/smetka/pkg/provider/transcribe"
	transcribeopenrouter "github.com/velesk/smetka/pkg/provider/transcribe/openrouter"
	"github.com/velesk/smetka/pkg/provider/transcribe/whisper"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	transcribe map[string]func(ProviderEntry) (transcribe.Provider, error)
	parse      map[string]func(ProviderEntry) (parse.Provider, error)
	embeddings map[string]func(ProviderEntry) (embeddings.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		transcribe: make(map[string]func(ProviderEntry) (transcribe.Provider, error)),
		parse:      make(map[string]func(ProviderEntry) (parse.Provider, error)),
		embeddings: make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
	}
}

// NewDefaultRegistry returns a [Registry] with all built-in provider
// implementations registered under the names listed in [ValidProviderNames].
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterTranscribe("openrouter", func(entry ProviderEntry) (transcribe.Provider, error) {
		var opts []transcribeopenrouter.Option
		if entry.BaseURL != "" {
			opts = append(opts, transcribeopenrouter.WithBaseURL(entry.BaseURL))
		}
		return transcribeopenrouter.New(entry.APIKey, entry.Model, opts...)
	})
	r.RegisterTranscribe("whisper", func(entry ProviderEntry) (transcribe.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optionString(entry, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})
	r.RegisterTranscribe("whisper-native", func(entry ProviderEntry) (transcribe.Provider, error) {
		var opts []whisper.NativeOption
		if lang := optionString(entry, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(entry.ModelPath, opts...)
	})

	r.RegisterParse("openrouter", func(entry ProviderEntry) (parse.Provider, error) {
		var opts []parseopenrouter.Option
		if entry.BaseURL != "" {
			opts = append(opts, parseopenrouter.WithBaseURL(entry.BaseURL))
		}
		return parseopenrouter.New(entry.APIKey, entry.Model, opts...)
	})
	for _, backend := range []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp"} {
		backend := backend
		r.RegisterParse(backend, func(entry ProviderEntry) (parse.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	r.RegisterEmbeddings("openai", func(entry ProviderEntry) (embeddings.Provider, error) {
		var opts []embedopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, embedopenai.WithBaseURL(entry.BaseURL))
		}
		return embedopenai.New(entry.APIKey, entry.Model, opts...)
	})
	r.RegisterEmbeddings("ollama", func(entry ProviderEntry) (embeddings.Provider, error) {
		return embedollama.New(entry.BaseURL, entry.Model)
	})

	return r
}

// RegisterTranscribe registers a transcription provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTranscribe(name string, factory func(ProviderEntry) (transcribe.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcribe[name] = factory
}

// RegisterParse registers a parse provider factory under name.
func (r *Registry) RegisterParse(name string, factory func(ProviderEntry) (parse.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parse[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// CreateTranscribe instantiates a transcription provider using the factory
// registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateTranscribe(entry ProviderEntry) (transcribe.Provider, error) {
	r.mu.RLock()
	factory, ok := r.transcribe[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transcribe/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateParse instantiates a parse provider using the factory registered under entry.Name.
func (r *Registry) CreateParse(entry ProviderEntry) (parse.Provider, error) {
	r.mu.RLock()
	factory, ok := r.parse[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: parse/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateEmbeddings instantiates an embeddings provider using the factory registered under entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// optionString returns the string value stored under key in entry.Options,
// or "" when absent or not a string.
func optionString(entry ProviderEntry, key string) string {
	v, ok := entry.Options[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
