package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBingEndpoint = "https://api.bing.microsoft.com/v7.0/search"

type BingConfig struct {
	APIKey   string
	Endpoint string
	Count    int
}

// Bing is the public web search used when the private index has nothing.
type Bing struct {
	apiKey   string
	endpoint string
	count    int
	client   *http.Client
}

func NewBing(cfg BingConfig) *Bing {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultBingEndpoint
	}
	count := cfg.Count
	if count <= 0 {
		count = defaultTop
	}
	return &Bing{
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(endpoint, "/"),
		count:    count,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *Bing) Configured() bool {
	return b != nil && b.apiKey != ""
}

func (b *Bing) FindSources(ctx context.Context, query string) ([]Source, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(b.count))
	params.Set("responseFilter", "Webpages")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("bing search request failed: %s", resp.Status)
	}

	var parsed struct {
		WebPages *struct {
			Value []struct {
				Name    string `json:"name"`
				Snippet string `json:"snippet"`
				URL     string `json:"url"`
			} `json:"value"`
		} `json:"webPages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode bing response: %w", err)
	}
	if parsed.WebPages == nil {
		return []Source{}, nil
	}
	sources := make([]Source, 0, len(parsed.WebPages.Value))
	for _, page := range parsed.WebPages.Value {
		sources = append(sources, Source{
			Title:      sanitize(page.Name),
			Content:    sanitize(page.Snippet),
			URL:        page.URL,
			SourceType: "Bing Web Search (High Confidence)",
		})
	}
	return sources, nil
}
