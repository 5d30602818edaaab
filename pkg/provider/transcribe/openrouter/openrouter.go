// Package openrouter provides a transcribe.Provider backed by a multimodal
// chat model reached through the OpenRouter API.
//
// OpenRouter exposes the OpenAI chat completions wire format, so the provider
// reuses the official OpenAI SDK and sends the recording as a base64
// input_audio content part alongside a transcription instruction. Any model
// with audio input support (e.g. "google/gemini-2.0-flash-001") works.
package openrouter

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/velesk/smetka/pkg/provider/transcribe"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"

	// defaultTimeout bounds one transcription round-trip. Multimodal models
	// can take well over a minute on long recordings.
	defaultTimeout = 120 * time.Second

	// transcribePrompt instructs the model to return the verbatim speech and
	// nothing else. Kept in Russian because the expected input is a Russian
	// construction-site dictation.
	transcribePrompt = "Транскрибируй это аудио. Верни только текст сказанного, без пояснений и форматирования."
)

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// audioFormats maps MIME types to the input_audio format identifiers the chat
// completions API understands. WebM recordings are declared as ogg: browsers
// produce Opus in a WebM container and the models accept it under that label.
var audioFormats = map[string]string{
	"audio/webm": "ogg",
	"audio/ogg":  "ogg",
	"audio/mp4":  "m4a",
	"audio/mpeg": "mp3",
	"audio/mp3":  "mp3",
	"audio/wav":  "wav",
	"audio/flac": "flac",
	"audio/aac":  "aac",
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenRouter API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to two minutes.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements transcribe.Provider using an OpenRouter chat model.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs a new OpenRouter transcription Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openrouter: model must not be empty")
	}

	cfg := &config{
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Transcribe implements transcribe.Provider.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("openrouter: empty audio")
	}

	format, ok := audioFormats[normalizeMime(mimeType)]
	if !ok {
		// Unknown container; let the model figure it out as ogg rather than
		// failing the whole dictation.
		format = "ogg"
	}

	parts := []oai.ChatCompletionContentPartUnionParam{
		oai.TextContentPart(transcribePrompt),
		oai.InputAudioContentPart(oai.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   base64.StdEncoding.EncodeToString(audio),
			Format: format,
		}),
	}

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:               p.model,
		Messages:            []oai.ChatCompletionMessageParamUnion{oai.UserMessage(parts)},
		MaxCompletionTokens: param.NewOpt(int64(4096)),
		Temperature:         param.NewOpt(0.1),
	})
	if err != nil {
		return "", fmt.Errorf("openrouter: transcribe: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openrouter: transcribe: empty response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// normalizeMime strips codec parameters such as "audio/webm;codecs=opus".
func normalizeMime(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
