// Package app provides the application layer that orchestrates business logic.
// This layer sits between the CLI, HTTP and MCP handlers and the domain
// packages, so every surface runs the same code for the same operation.
package app

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/josephgoksu/Wayline/internal/bridge"
	"github.com/josephgoksu/Wayline/internal/gaps"
	"github.com/josephgoksu/Wayline/internal/knowledge"
	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/memory"
	"github.com/josephgoksu/Wayline/internal/policy"
	"github.com/josephgoksu/Wayline/internal/reasoning"
	"github.com/josephgoksu/Wayline/internal/telemetry"
)

var validate = validator.New()

// Config collects the tunables of every use case.
type Config struct {
	Reasoning  reasoning.Config
	Gaps       gaps.Config
	Bridge     bridge.Config
	Reflection ReflectionConfig
}

// ReflectionConfig tunes the reflection use cases.
type ReflectionConfig struct {
	BlockFloor int           `mapstructure:"blockFloor" validate:"gte=0"`
	RetryDelay time.Duration `mapstructure:"retryDelay"`
}

// DefaultConfig returns the defaults of every section.
func DefaultConfig() Config {
	return Config{
		Reasoning:  reasoning.DefaultConfig(),
		Gaps:       gaps.DefaultConfig(),
		Bridge:     bridge.DefaultConfig(),
		Reflection: ReflectionConfig{BlockFloor: 5, RetryDelay: time.Second},
	}
}

// Context holds shared dependencies for all app services.
type Context struct {
	Store  *memory.SQLiteStore
	Text   llm.TextService
	Scorer *knowledge.Scorer
	Cfg    Config

	// Policy guards acceptance. Nil skips policy checks.
	Policy *policy.Engine
	// Telemetry defaults to a no-op client.
	Telemetry telemetry.Client
}

// NewContext wires a context over the store. Nil services fall back to
// llm.Unavailable, which drives every component onto its degraded path.
// Embeddings are cached in the store.
func NewContext(store *memory.SQLiteStore, text llm.TextService, vectors llm.VectorService, cfg Config) *Context {
	if text == nil {
		text = llm.Unavailable{}
	}
	if vectors == nil {
		vectors = llm.Unavailable{}
	}
	return &Context{
		Store:     store,
		Text:      text,
		Scorer:    knowledge.NewScorer(knowledge.NewEmbedder(vectors, store)),
		Cfg:       cfg,
		Telemetry: telemetry.NoopClient{},
	}
}

func (c *Context) track(event string, props telemetry.Properties) {
	if c.Telemetry != nil {
		c.Telemetry.Track(event, props)
	}
}
