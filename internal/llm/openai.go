package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout         = 35 * time.Second
	defaultAzureAPIVersion = "2024-12-01-preview"
	errorBodyLimit         = 512
)

type OpenAIConfig struct {
	Name    string
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type AzureConfig struct {
	Endpoint   string
	Deployment string
	APIKey     string
	APIVersion string
	Timeout    time.Duration
}

// OpenAIProvider speaks the chat completions protocol shared by OpenAI,
// OpenRouter, Moonshot and Azure OpenAI deployments.
type OpenAIProvider struct {
	name     string
	apiKey   string
	model    string
	baseURL  string
	endpoint string
	azure    bool
	client   *http.Client
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &OpenAIProvider{
		name:     defaultIfEmpty(cfg.Name, ProviderOpenAI),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		baseURL:  baseURL,
		endpoint: baseURL + "/chat/completions",
		client:   &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)},
	}
}

func NewAzureOpenAIProvider(cfg AzureConfig) (*OpenAIProvider, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("missing endpoint for azure-openai provider")
	}
	baseURL := strings.TrimRight(cfg.Endpoint, "/")
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		baseURL,
		url.PathEscape(cfg.Deployment),
		url.QueryEscape(defaultIfEmpty(cfg.APIVersion, defaultAzureAPIVersion)),
	)
	return &OpenAIProvider{
		name:     ProviderAzureOpenAI,
		apiKey:   cfg.APIKey,
		model:    cfg.Deployment,
		baseURL:  baseURL,
		endpoint: endpoint,
		azure:    true,
		client:   &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)},
	}, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	if p.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if p.model == "" {
		return "", ErrMissingModel
	}
	options := applyOptions(opts)
	payload := map[string]any{
		"messages": messages,
	}
	if !p.azure {
		payload["model"] = p.model
	}
	if options.Temperature != nil {
		payload["temperature"] = *options.Temperature
	}
	if options.MaxTokens > 0 {
		payload["max_tokens"] = options.MaxTokens
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if p.azure {
		req.Header.Set("api-key", p.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &TransportError{Provider: p.name, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		err := fmt.Errorf("LLM request failed: %s", resp.Status)
		if text := strings.TrimSpace(string(snippet)); text != "" {
			err = fmt.Errorf("LLM request failed: %s: %s", resp.Status, text)
		}
		return "", &TransportError{Provider: p.name, StatusCode: resp.StatusCode, Err: err}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode %s response: %w", p.name, err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrNoChoices
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultTimeout
	}
	return timeout
}
