package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const azureSearchAPIVersion = "2023-11-01"

type AzureSearchConfig struct {
	Endpoint string
	APIKey   string
	Index    string
	Top      int
}

// AzureSearch queries a private Azure AI Search index over its REST API.
type AzureSearch struct {
	endpoint string
	apiKey   string
	index    string
	top      int
	client   *http.Client
}

func NewAzureSearch(cfg AzureSearchConfig) *AzureSearch {
	top := cfg.Top
	if top <= 0 {
		top = defaultTop
	}
	return &AzureSearch{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		index:    cfg.Index,
		top:      top,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *AzureSearch) Configured() bool {
	return a != nil && a.endpoint != "" && a.apiKey != "" && a.index != ""
}

func (a *AzureSearch) FindSources(ctx context.Context, query string) ([]Source, error) {
	body, err := json.Marshal(map[string]any{
		"search": query,
		"top":    a.top,
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", a.endpoint, url.PathEscape(a.index), azureSearchAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("api-key", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("azure search request failed: %s", resp.Status)
	}

	var parsed struct {
		Value []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			URL     string `json:"url"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode azure search response: %w", err)
	}
	sources := make([]Source, 0, len(parsed.Value))
	for _, doc := range parsed.Value {
		sources = append(sources, Source{
			Title:      sanitize(doc.Title),
			Content:    sanitize(doc.Content),
			URL:        doc.URL,
			SourceType: "Azure AI Search (Private)",
		})
	}
	return sources, nil
}
