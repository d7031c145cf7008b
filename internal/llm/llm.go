package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// Provider turns a chat transcript into the model's raw text reply.
type Provider interface {
	Generate(ctx context.Context, messages []Message, opts ...Option) (string, error)
}

type CallOptions struct {
	Temperature *float64
	MaxTokens   int
}

type Option func(*CallOptions)

func WithTemperature(temperature float64) Option {
	return func(o *CallOptions) {
		o.Temperature = &temperature
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *CallOptions) {
		o.MaxTokens = maxTokens
	}
}

func applyOptions(opts []Option) CallOptions {
	var options CallOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

const (
	ProviderOpenAI      = "openai"
	ProviderOpenRouter  = "openrouter"
	ProviderMoonshot    = "moonshot-ai"
	ProviderAzureOpenAI = "azure-openai"
	ProviderGemini      = "gemini"
	ProviderOllama      = "ollama"
)

// Config describes one provider endpoint. For azure-openai BaseURL is the
// resource endpoint and Model is the deployment name.
type Config struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	APIVersion string
	Timeout    time.Duration
}

// NewProvider builds the provider named by cfg. Hosted OpenAI-compatible
// providers without an API key are rejected here rather than on first call.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderOpenAI, ProviderOpenRouter, ProviderMoonshot, ProviderAzureOpenAI:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
		}
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			Name:    cfg.Provider,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}), nil
	case ProviderOpenRouter:
		return NewOpenAIProvider(OpenAIConfig{
			Name:    cfg.Provider,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: defaultIfEmpty(cfg.BaseURL, "https://openrouter.ai/api/v1"),
			Timeout: cfg.Timeout,
		}), nil
	case ProviderMoonshot:
		return NewOpenAIProvider(OpenAIConfig{
			Name:    cfg.Provider,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: defaultIfEmpty(cfg.BaseURL, "https://api.moonshot.ai/v1"),
			Timeout: cfg.Timeout,
		}), nil
	case ProviderAzureOpenAI:
		return NewAzureOpenAIProvider(AzureConfig{
			Endpoint:   cfg.BaseURL,
			Deployment: cfg.Model,
			APIKey:     cfg.APIKey,
			APIVersion: cfg.APIVersion,
			Timeout:    cfg.Timeout,
		})
	case ProviderGemini:
		return NewGeminiProvider(context.Background(), GeminiConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})
	case ProviderOllama:
		return NewOllamaProvider(OllamaConfig{
			ServerURL: cfg.BaseURL,
			Model:     cfg.Model,
		})
	default:
		return nil, ErrUnsupportedProvider{Provider: cfg.Provider}
	}
}

func defaultIfEmpty(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
