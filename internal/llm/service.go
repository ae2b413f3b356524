package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/josephgoksu/Wayline/internal/metrics"
)

var tracer = otel.Tracer("wayline/llm")

// Request is one call to the text intelligence service.
type Request struct {
	Operation   string // metric/log label, e.g. "classify_reflection"
	System      string
	Prompt      string
	Temperature float32
	Tools       []*schema.ToolInfo
}

// ToolCall is a tool the model asked to run.
type ToolCall struct {
	Name      string
	Arguments string
}

// Response is the model's answer.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// TextService classifies and generates text. Implementations are fallible,
// rate-limited and slow; callers own retry and fallback policy.
type TextService interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// VectorService turns text into fixed-length vectors.
type VectorService interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EinoTextService adapts an Eino chat model.
type EinoTextService struct {
	chat        model.BaseChatModel
	limiter     *rate.Limiter
	temperature float32
	timeout     time.Duration
}

// NewTextService builds a TextService from config. Without a provider it
// returns Unavailable so callers degrade instead of failing to start.
func NewTextService(ctx context.Context, cfg Config) (TextService, error) {
	if !cfg.Enabled() {
		return Unavailable{}, nil
	}
	chat, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return NewEinoTextService(chat, cfg), nil
}

// NewEinoTextService wraps an existing chat model.
func NewEinoTextService(chat model.BaseChatModel, cfg Config) *EinoTextService {
	temp := cfg.Temperature
	if temp <= 0 {
		temp = DefaultTemperature
	}
	return &EinoTextService{
		chat:        chat,
		limiter:     newLimiter(cfg),
		temperature: temp,
		timeout:     DefaultCallTimeout,
	}
}

// Complete sends one request and waits for the full answer.
func (s *EinoTextService) Complete(ctx context.Context, req Request) (resp *Response, err error) {
	ctx, span := tracer.Start(ctx, "llm.complete")
	span.SetAttributes(attribute.String("operation", req.Operation))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.TextServiceCalls.WithLabelValues(req.Operation, outcome).Inc()
		span.End()
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var messages []*schema.Message
	if req.System != "" {
		messages = append(messages, schema.SystemMessage(req.System))
	}
	messages = append(messages, schema.UserMessage(req.Prompt))

	temp := req.Temperature
	if temp <= 0 {
		temp = s.temperature
	}
	opts := []model.Option{model.WithTemperature(temp)}
	if len(req.Tools) > 0 {
		opts = append(opts, model.WithTools(req.Tools))
	}

	msg, err := s.chat.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", req.Operation, err)
	}
	out := &Response{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out, nil
}

// EinoVectorService adapts an Eino embedder.
type EinoVectorService struct {
	embedder embedding.Embedder
	limiter  *rate.Limiter
}

// NewVectorService builds a VectorService from config, or Unavailable.
func NewVectorService(ctx context.Context, cfg Config) (VectorService, error) {
	if !cfg.Enabled() || cfg.Provider == ProviderAnthropic {
		return Unavailable{}, nil
	}
	emb, err := NewEmbeddingModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedding model: %w", err)
	}
	return NewEinoVectorService(emb, cfg), nil
}

// NewEinoVectorService wraps an existing embedder.
func NewEinoVectorService(emb embedding.Embedder, cfg Config) *EinoVectorService {
	return &EinoVectorService{embedder: emb, limiter: newLimiter(cfg)}
}

// Embed returns one vector per input text.
func (s *EinoVectorService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, span := tracer.Start(ctx, "llm.embed")
	defer span.End()
	span.SetAttributes(attribute.Int("texts", len(texts)))

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	// Eino returns [][]float64
	vecs64, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs64) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(vecs64), len(texts))
	}
	out := make([][]float32, len(vecs64))
	for i, v := range vecs64 {
		out[i] = make([]float32, len(v))
		for j, x := range v {
			out[i][j] = float32(x)
		}
	}
	return out, nil
}

// Unavailable is the service used when no provider is configured.
// Every call fails with ErrNoProvider so callers take their fallback path.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, Request) (*Response, error) {
	return nil, ErrNoProvider
}

func (Unavailable) Embed(context.Context, []string) ([][]float32, error) {
	return nil, ErrNoProvider
}

func newLimiter(cfg Config) *rate.Limiter {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
