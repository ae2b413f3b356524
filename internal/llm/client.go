// Package llm provides the text intelligence and vector similarity services
// on top of CloudWeGo Eino providers.
package llm

import (
	"context"
	"errors"
	"fmt"

	geminiEmbed "github.com/cloudwego/eino-ext/components/embedding/gemini"
	ollamaEmbed "github.com/cloudwego/eino-ext/components/embedding/ollama"
	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Provider identifies the LLM provider to use.
type Provider string

// ErrNoProvider is returned by services built without a configured provider.
var ErrNoProvider = errors.New("no LLM provider configured")

// Config holds configuration for creating an LLM client.
type Config struct {
	Provider          Provider `mapstructure:"provider"`
	Model             string   `mapstructure:"model"`          // Chat model
	EmbeddingModel    string   `mapstructure:"embeddingModel"` // Embedding model (optional)
	APIKey            string   `mapstructure:"apiKey"`         // Required for hosted providers
	BaseURL           string   `mapstructure:"baseURL"`        // Ollama endpoint
	Temperature       float32  `mapstructure:"temperature"`
	RequestsPerSecond float64  `mapstructure:"requestsPerSecond"`
	Burst             int      `mapstructure:"burst"`
}

// Enabled reports whether a provider is configured.
func (c Config) Enabled() bool { return c.Provider != "" }

// NewChatModel creates a ChatModel instance based on the provider configuration.
// It returns an Eino BaseChatModel that can be used for Generate() or Stream() calls.
func NewChatModel(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModelForProvider(cfg.Provider)
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:  modelName,
			APIKey: cfg.APIKey,
		})

	case ProviderOllama:
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURLOrDefault(cfg.BaseURL),
			Model:   modelName,
		})

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     modelName,
			MaxTokens: anthropicMaxTokens,
		})

	case ProviderGemini:
		client, err := newGenAIClient(ctx, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})

	case "":
		return nil, ErrNoProvider

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai, ollama, anthropic, gemini)", cfg.Provider)
	}
}

// NewEmbeddingModel creates an EmbeddingModel instance based on the provider configuration.
// Anthropic has no embedding API, so it is rejected here.
func NewEmbeddingModel(ctx context.Context, cfg Config) (embedding.Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
			Model:  orDefault(cfg.EmbeddingModel, DefaultOpenAIEmbeddingModel),
			APIKey: cfg.APIKey,
		})

	case ProviderOllama:
		return ollamaEmbed.NewEmbedder(ctx, &ollamaEmbed.EmbeddingConfig{
			BaseURL: baseURLOrDefault(cfg.BaseURL),
			Model:   orDefault(cfg.EmbeddingModel, DefaultOllamaEmbeddingModel),
		})

	case ProviderGemini:
		client, err := newGenAIClient(ctx, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		return geminiEmbed.NewEmbedder(ctx, &geminiEmbed.EmbeddingConfig{
			Client: client,
			Model:  orDefault(cfg.EmbeddingModel, DefaultGeminiEmbeddingModel),
		})

	case "":
		return nil, ErrNoProvider

	default:
		return nil, fmt.Errorf("provider %s has no embedding support", cfg.Provider)
	}
}

// ValidateProvider checks if the given provider string is supported.
func ValidateProvider(p string) (Provider, error) {
	switch Provider(p) {
	case ProviderOpenAI, ProviderOllama, ProviderAnthropic, ProviderGemini:
		return Provider(p), nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", p)
	}
}

func newGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client, nil
}

func baseURLOrDefault(u string) string {
	return orDefault(u, DefaultOllamaURL)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
