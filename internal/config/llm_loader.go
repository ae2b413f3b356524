package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/josephgoksu/Wayline/internal/llm"
)

// LoadLLMConfig loads LLM configuration from Viper and environment variables.
// Precedence: explicit config > provider env vars > defaults.
//
// With no provider configured and no OPENAI_API_KEY in the environment the
// returned config is disabled, and every AI-backed step runs degraded.
func LoadLLMConfig() (llm.Config, error) {
	provider := strings.TrimSpace(viper.GetString("llm.provider"))
	if provider == "" {
		if providerEnvKey(llm.DefaultProvider) == "" {
			return llm.Config{}, nil
		}
		provider = string(llm.DefaultProvider)
	}

	p, err := llm.ValidateProvider(provider)
	if err != nil {
		return llm.Config{}, fmt.Errorf("invalid provider: %w", err)
	}

	model := viper.GetString("llm.model")
	if model == "" {
		model = llm.DefaultModelForProvider(p)
	}

	baseURL := viper.GetString("llm.baseURL")
	if baseURL == "" && p == llm.ProviderOllama {
		baseURL = llm.DefaultOllamaURL
	}

	embeddingModel := viper.GetString("llm.embeddingModel")
	if embeddingModel == "" {
		switch p {
		case llm.ProviderOpenAI:
			embeddingModel = llm.DefaultOpenAIEmbeddingModel
		case llm.ProviderOllama:
			embeddingModel = llm.DefaultOllamaEmbeddingModel
		case llm.ProviderGemini:
			embeddingModel = llm.DefaultGeminiEmbeddingModel
		}
	}

	cfg := llm.Config{
		Provider:          p,
		Model:             model,
		EmbeddingModel:    embeddingModel,
		APIKey:            ResolveAPIKey(p),
		BaseURL:           baseURL,
		Temperature:       float32(getFloat64WithDefault("llm.temperature", llm.DefaultTemperature)),
		RequestsPerSecond: getFloat64WithDefault("llm.requestsPerSecond", llm.DefaultRequestsPerSecond),
		Burst:             getIntWithDefault("llm.burst", llm.DefaultBurst),
	}
	if cfg.RequestsPerSecond <= 0 || cfg.Burst <= 0 {
		return llm.Config{}, fmt.Errorf("llm.requestsPerSecond and llm.burst must be positive")
	}
	return cfg, nil
}

// ResolveAPIKey returns the API key for provider: llm.apiKey first, then
// the provider's environment variable.
func ResolveAPIKey(provider llm.Provider) string {
	if viper.IsSet("llm.apiKey") {
		if key := strings.TrimSpace(viper.GetString("llm.apiKey")); key != "" {
			return key
		}
	}
	return providerEnvKey(provider)
}

func providerEnvKey(provider llm.Provider) string {
	switch provider {
	case llm.ProviderOpenAI:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	case llm.ProviderAnthropic:
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	case llm.ProviderGemini:
		key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if key == "" {
			key = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
		return key
	default:
		return ""
	}
}
