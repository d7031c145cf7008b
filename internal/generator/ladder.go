package generator

import (
	"strings"

	"github.com/sujithputta02/LifeFlow-AI/internal/llm"
	"github.com/sujithputta02/LifeFlow-AI/internal/logging"
)

// Rung is one provider attempt on the fallback ladder.
type Rung struct {
	Name     string
	Provider llm.Provider
}

type ProviderFactory func(llm.Config) (llm.Provider, error)

// BuildRungs constructs providers in order, skipping duplicates of the same
// provider and model and any configuration that cannot be constructed.
func BuildRungs(configs []llm.Config, newProvider ProviderFactory, log *logging.Logger) []Rung {
	if newProvider == nil {
		newProvider = llm.NewProvider
	}
	if log == nil {
		log = logging.Nop()
	}
	rungs := make([]Rung, 0, len(configs))
	seen := map[string]struct{}{}
	for _, cfg := range configs {
		name := strings.TrimSpace(cfg.Provider)
		key := name + "|" + strings.TrimSpace(cfg.Model)
		if _, exists := seen[key]; exists {
			continue
		}
		provider, err := newProvider(cfg)
		if err != nil {
			log.Warn("skipping llm provider", "provider", name, "model", cfg.Model, "error", err)
			continue
		}
		seen[key] = struct{}{}
		rungs = append(rungs, Rung{Name: name, Provider: provider})
	}
	return rungs
}

func rungNames(rungs []Rung) []string {
	names := make([]string, 0, len(rungs))
	for _, r := range rungs {
		names = append(names, r.Name)
	}
	return names
}
