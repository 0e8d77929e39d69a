
// Package llm talks to the hosted completion service used for open-ended
// questions. Two providers are supported: any OpenAI-compatible
// chat-completions endpoint and the Anthropic Messages API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7
	DefaultTimeout     = 30 * time.Second
)

// ErrNotConfigured is returned by New when no API key is set.
var ErrNotConfigured = errors.New("completion service not configured")

// Config.Temperature is sent as is; 0 asks for deterministic sampling.
type Config struct {
	Provider    string        `yaml:"provider" env:"COMPLETION_PROVIDER"`
	APIKey      string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"COMPLETION_BASE_URL"`
	Model       string        `yaml:"model" env:"COMPLETION_MODEL"`
	MaxTokens   int           `yaml:"max_tokens" env:"COMPLETION_MAX_TOKENS"`
	Temperature float64       `yaml:"temperature" env:"COMPLETION_TEMPERATURE"`
	Timeout     time.Duration `yaml:"timeout" env:"COMPLETION_TIMEOUT"`
}

// Prompt is one system + user exchange. Zero MaxTokens or a nil Temperature
// fall back to the client settings.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature *float64
}

// Temperature returns a Prompt temperature for v.
func Temperature(v float64) *float64 { return &v }

type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// APIError carries a non-2xx answer from the completion service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion API returned status %d: %s", e.StatusCode, e.Body)
}

// New builds the configured provider. It returns ErrNotConfigured when the
// API key is empty, which callers treat as "answer without the model".
func New(cfg Config) (Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}

// OpenAIClient calls {base_url}/chat/completions.
type OpenAIClient struct {
	client      openai.Client
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// NewOpenAI fills an empty base URL, model, token cap or timeout with the
// package defaults.
func NewOpenAI(cfg Config) *OpenAIClient {
	c := &OpenAIClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	c.client = openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(c.baseURL+"/"),
		option.WithHTTPClient(&http.Client{Timeout: c.timeout}),
		option.WithMaxRetries(0),
	)
	return c
}

func (c *OpenAIClient) Complete(ctx context.Context, p Prompt) (string, error) {
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temperature := c.temperature
	if p.Temperature != nil {
		temperature = *p.Temperature
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	messages = append(messages, openai.UserMessage(p.User))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &APIError{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", fmt.Errorf("chat completions request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
