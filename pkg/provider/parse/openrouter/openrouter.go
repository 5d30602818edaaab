// Package openrouter provides a parse.Provider backed by an OpenAI-compatible
// chat model reached through the OpenRouter API.
package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/velesk/smetka/pkg/provider/parse"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 60 * time.Second

	// Low temperature keeps the extraction deterministic; this is data entry,
	// not prose.
	parseTemperature = 0.1
	parseMaxTokens   = 4096
)

// Compile-time assertion that Provider implements parse.Provider.
var _ parse.Provider = (*Provider)(nil)

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

// WithTimeout sets the per-request HTTP timeout. Defaults to one minute.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements parse.Provider using an OpenRouter chat model.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs a new OpenRouter parsing Provider.
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

// Parse implements parse.Provider.
func (p *Provider) Parse(ctx context.Context, transcript string, catalog []parse.CatalogItem) (*parse.Result, error) {
	prompt := parse.BuildPrompt(transcript, catalog)

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:               p.model,
		Messages:            []oai.ChatCompletionMessageParamUnion{oai.UserMessage(prompt)},
		MaxCompletionTokens: param.NewOpt(int64(parseMaxTokens)),
		Temperature:         param.NewOpt(parseTemperature),
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter: parse transcript: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openrouter: parse transcript: empty response")
	}

	result, err := parse.DecodeResult(resp.Choices[0].Message.Content, catalog)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	return result, nil
}
