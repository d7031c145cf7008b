package retrieval

import (
	"context"

	"github.com/sujithputta02/LifeFlow-AI/internal/logging"
)

// Chain prefers the private index and falls back to web search when the index
// returns nothing. Lookup failures are logged and treated as no results.
type Chain struct {
	primary  *AzureSearch
	fallback *Bing
	log      *logging.Logger
}

func NewChain(primary *AzureSearch, fallback *Bing, log *logging.Logger) *Chain {
	if log == nil {
		log = logging.Nop()
	}
	return &Chain{primary: primary, fallback: fallback, log: log}
}

func (c *Chain) FindSources(ctx context.Context, query string) ([]Source, error) {
	var results []Source
	if c.primary.Configured() {
		sources, err := c.primary.FindSources(ctx, query)
		if err != nil {
			c.log.Warn("azure search query failed", "error", err)
		} else {
			results = sources
		}
	}
	if len(results) > 0 {
		return results, nil
	}

	if !c.fallback.Configured() {
		c.log.Debug("no web search key configured, continuing without sources")
		return []Source{}, nil
	}
	sources, err := c.fallback.FindSources(ctx, query)
	if err != nil {
		c.log.Warn("bing search failed", "error", err)
		return []Source{}, nil
	}
	return sources, nil
}
