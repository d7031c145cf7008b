package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

type OllamaConfig struct {
	ServerURL string
	Model     string
}

// ChainProvider adapts a langchaingo model to Provider.
type ChainProvider struct {
	name  string
	model llms.Model
}

func NewChainProvider(name string, model llms.Model) *ChainProvider {
	return &ChainProvider{name: name, model: model}
}

func NewOllamaProvider(cfg OllamaConfig) (*ChainProvider, error) {
	if cfg.Model == "" {
		return nil, ErrMissingModel
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
	}
	model, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return NewChainProvider(ProviderOllama, model), nil
}

func (p *ChainProvider) Generate(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	options := applyOptions(opts)
	var callOpts []llms.CallOption
	if options.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(*options.Temperature))
	}
	if options.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(options.MaxTokens))
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatMessageType(msg.Role), msg.Content))
	}

	resp, err := p.model.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", &TransportError{Provider: p.name, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func chatMessageType(role string) llms.ChatMessageType {
	switch role {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
