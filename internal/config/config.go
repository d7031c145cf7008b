package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sujithputta02/LifeFlow-AI/internal/llm"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Port         string
	LogMode      string
	CORSOrigin   string
	HistoryLimit int

	StoreDriver string
	PostgresURL string
	SQLitePath  string

	LLMProvider         string
	LLMModel            string
	LLMBaseURL          string
	LLMFallbackProvider string
	LLMFallbackModel    string
	LLMFallbackBaseURL  string
	LLMLadderFile       string
	LLMTimeout          time.Duration
	GuidanceFile        string

	OpenAIAPIKey          string
	OpenRouterAPIKey      string
	GeminiAPIKey          string
	AzureOpenAIAPIKey     string
	AzureOpenAIEndpoint   string
	AzureOpenAIDeployment string
	AzureOpenAIAPIVersion string
	OllamaURL             string

	UseMockData  bool
	DemoFallback bool

	AzureSearchEndpoint string
	AzureSearchKey      string
	AzureSearchIndex    string
	BingSearchAPIKey    string

	OTelEnabled  bool
	OTelExporter string
}

func Load() Config {
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		Port:         getEnv("PORT", "5000"),
		LogMode:      getEnv("LOG_MODE", "production"),
		CORSOrigin:   getEnv("CORS_ORIGIN", "*"),
		HistoryLimit: getEnvInt("HISTORY_LIMIT", 20),

		StoreDriver: getEnv("STORE_DRIVER", StoreMemory),
		PostgresURL: postgresURL,
		SQLitePath:  getEnv("SQLITE_PATH", "lifeflow.db"),

		LLMProvider:         getEnv("LLM_PROVIDER", llm.ProviderAzureOpenAI),
		LLMModel:            getEnv("LLM_MODEL", ""),
		LLMBaseURL:          getEnv("LLM_BASE_URL", ""),
		LLMFallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", llm.ProviderOpenRouter),
		LLMFallbackModel:    getEnv("LLM_FALLBACK_MODEL", getEnv("AI_MODEL_NAME", "deepseek/deepseek-r1-0528:free")),
		LLMFallbackBaseURL:  getEnv("LLM_FALLBACK_BASE_URL", ""),
		LLMLadderFile:       getEnv("LLM_LADDER_FILE", ""),
		LLMTimeout:          getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		GuidanceFile:        getEnv("LLM_GUIDANCE_FILE", ""),

		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenRouterAPIKey:      getEnv("OPENROUTER_API_KEY", ""),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		AzureOpenAIAPIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureOpenAIEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIDeployment: getEnv("AZURE_OPENAI_DEPLOYMENT", ""),
		AzureOpenAIAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", ""),
		OllamaURL:             getEnv("OLLAMA_URL", ""),

		UseMockData:  getEnvBool("USE_MOCK_DATA", false),
		DemoFallback: getEnvBool("LLM_DEMO_FALLBACK", false),

		AzureSearchEndpoint: getEnv("AZURE_SEARCH_ENDPOINT", ""),
		AzureSearchKey:      getEnv("AZURE_SEARCH_KEY", ""),
		AzureSearchIndex:    getEnv("AZURE_SEARCH_INDEX", "lifeflow-index"),
		BingSearchAPIKey:    getEnv("BING_SEARCH_API_KEY", ""),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelExporter: getEnv("OTEL_EXPORTER", "stdout"),
	}
}

type ladderFile struct {
	Rungs []ladderRung `yaml:"rungs"`
}

type ladderRung struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"baseURL"`
	APIKeyEnv  string        `yaml:"apiKeyEnv"`
	APIVersion string        `yaml:"apiVersion"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Ladder returns the ordered provider configurations. A ladder file, when
// set, replaces the primary/fallback pair.
func (c Config) Ladder() ([]llm.Config, error) {
	if c.LLMLadderFile != "" {
		return c.loadLadderFile(c.LLMLadderFile)
	}
	rungs := []llm.Config{c.resolve(llm.Config{
		Provider: c.LLMProvider,
		Model:    c.LLMModel,
		BaseURL:  c.LLMBaseURL,
	})}
	if c.LLMFallbackProvider != "" {
		rungs = append(rungs, c.resolve(llm.Config{
			Provider: c.LLMFallbackProvider,
			Model:    c.LLMFallbackModel,
			BaseURL:  c.LLMFallbackBaseURL,
		}))
	}
	return rungs, nil
}

func (c Config) loadLadderFile(path string) ([]llm.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ladder file: %w", err)
	}
	var file ladderFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse ladder file: %w", err)
	}
	if len(file.Rungs) == 0 {
		return nil, errors.New("ladder file has no rungs")
	}
	rungs := make([]llm.Config, 0, len(file.Rungs))
	for i, entry := range file.Rungs {
		if strings.TrimSpace(entry.Provider) == "" {
			return nil, fmt.Errorf("ladder rung %d has no provider", i+1)
		}
		rung := llm.Config{
			Provider:   entry.Provider,
			Model:      entry.Model,
			BaseURL:    entry.BaseURL,
			APIVersion: entry.APIVersion,
			Timeout:    entry.Timeout,
		}
		if entry.APIKeyEnv != "" {
			rung.APIKey = os.Getenv(entry.APIKeyEnv)
		}
		rungs = append(rungs, c.resolve(rung))
	}
	return rungs, nil
}

// resolve fills credentials and endpoint defaults for a rung from the
// provider-specific settings.
func (c Config) resolve(rung llm.Config) llm.Config {
	if rung.Timeout == 0 {
		rung.Timeout = c.LLMTimeout
	}
	switch rung.Provider {
	case llm.ProviderAzureOpenAI:
		rung.APIKey = firstNonEmpty(rung.APIKey, c.AzureOpenAIAPIKey)
		rung.BaseURL = firstNonEmpty(rung.BaseURL, c.AzureOpenAIEndpoint)
		rung.Model = firstNonEmpty(rung.Model, c.AzureOpenAIDeployment)
		rung.APIVersion = firstNonEmpty(rung.APIVersion, c.AzureOpenAIAPIVersion)
	case llm.ProviderOpenRouter:
		rung.APIKey = firstNonEmpty(rung.APIKey, c.OpenRouterAPIKey)
	case llm.ProviderOpenAI, llm.ProviderMoonshot:
		rung.APIKey = firstNonEmpty(rung.APIKey, c.OpenAIAPIKey)
	case llm.ProviderGemini:
		rung.APIKey = firstNonEmpty(rung.APIKey, c.GeminiAPIKey)
	case llm.ProviderOllama:
		rung.BaseURL = firstNonEmpty(rung.BaseURL, c.OllamaURL)
	}
	return rung
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "lifeflow")
	password := getEnv("POSTGRES_PASSWORD", "lifeflow")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "lifeflow")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
