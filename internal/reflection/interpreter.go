package reflection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/utils"
)

var tracer = otel.Tracer("wayline/reflection")

// DefaultRetryDelay is the pause before the single classification retry.
const DefaultRetryDelay = time.Second

// IntentStore persists intents. Lookups return nil, nil on a miss.
type IntentStore interface {
	LookupIntent(reflectionID string) (*Intent, error)
	LookupIntentByHash(userID, textHash string) (*Intent, error)
	SaveIntent(in *Intent) error
}

// classification is the model's schema.
type classification struct {
	Type     string    `json:"type" validate:"required,oneof=constraint opportunity capacity sequencing information"`
	Subtype  string    `json:"subtype" validate:"required"`
	Strength string    `json:"strength" validate:"required,oneof=hard soft"`
	Polarity string    `json:"polarity" validate:"omitempty,oneof=negative positive"`
	Keywords []string  `json:"keywords" validate:"max=12,dive,min=2,max=60"`
	Duration *Duration `json:"duration" validate:"omitempty"`
	Summary  string    `json:"summary" validate:"required,max=280"`
}

func (c classification) check() error {
	if !ValidPair(Type(c.Type), Subtype(c.Subtype)) {
		return fmt.Errorf("subtype %q does not belong to type %q", c.Subtype, c.Type)
	}
	return nil
}

// Interpreter classifies reflection text once and serves the cached
// intent until the text changes.
type Interpreter struct {
	text       llm.TextService
	store      IntentStore
	retryDelay time.Duration
	group      singleflight.Group
}

// NewInterpreter creates an Interpreter.
func NewInterpreter(text llm.TextService, store IntentStore, retryDelay time.Duration) *Interpreter {
	return &Interpreter{text: text, store: store, retryDelay: retryDelay}
}

// Interpret returns the intent for r and whether a classification call
// was made. Classification failures fall back to an inert, degraded
// intent; only store errors are returned.
func (i *Interpreter) Interpret(ctx context.Context, r Reflection) (*Intent, bool, error) {
	hash := TextHash(r.Text)

	cached, err := i.store.LookupIntent(r.ID)
	if err != nil {
		return nil, false, fmt.Errorf("lookup intent: %w", err)
	}
	if cached != nil && cached.TextHash == hash && !cached.Degraded {
		return cached, false, nil
	}

	// Same text from the same user reads the same way.
	twin, err := i.store.LookupIntentByHash(r.UserID, hash)
	if err != nil {
		return nil, false, fmt.Errorf("lookup intent by text: %w", err)
	}
	if twin != nil && !twin.Degraded {
		reused := *twin
		reused.ReflectionID = r.ID
		reused.CreatedAt = time.Now().UTC()
		if err := i.store.SaveIntent(&reused); err != nil {
			return nil, false, fmt.Errorf("save intent: %w", err)
		}
		return &reused, false, nil
	}

	v, err, _ := i.group.Do(r.ID+":"+hash, func() (any, error) {
		in := i.classify(ctx, r, hash)
		if err := i.store.SaveIntent(in); err != nil {
			return nil, fmt.Errorf("save intent: %w", err)
		}
		return in, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Intent), true, nil
}

func (i *Interpreter) classify(ctx context.Context, r Reflection, hash string) *Intent {
	ctx, span := tracer.Start(ctx, "reflection.classify")
	defer span.End()
	span.SetAttributes(attribute.String("reflection.id", r.ID))

	req := llm.Request{
		Operation: "classify_reflection",
		System:    "You classify short notes about a person's situation. Output JSON only.",
		Prompt:    fmt.Sprintf(classifyPrompt, utils.Truncate(r.Text, 1000)),
	}
	var c classification
	err := llm.Retry(ctx, 2, i.retryDelay, func(ctx context.Context) error {
		var err error
		c, err = llm.Structured(ctx, i.text, req, classification.check)
		return err
	})

	now := time.Now().UTC()
	if err != nil {
		slog.Warn("reflection classification failed, using context-only intent", "reflection_id", r.ID, "error", err)
		span.SetAttributes(attribute.Bool("degraded", true))
		return &Intent{
			ReflectionID: r.ID,
			UserID:       r.UserID,
			Type:         TypeInformation,
			Subtype:      SubtypeContextOnly,
			Strength:     StrengthSoft,
			Polarity:     PolarityNegative,
			Keywords:     fallbackKeywords(r.Text),
			Summary:      utils.Truncate(r.Text, 280),
			TextHash:     hash,
			Degraded:     true,
			CreatedAt:    now,
		}
	}

	in := &Intent{
		ReflectionID: r.ID,
		UserID:       r.UserID,
		Type:         Type(c.Type),
		Subtype:      Subtype(c.Subtype),
		Strength:     Strength(c.Strength),
		Polarity:     Polarity(c.Polarity),
		Keywords:     normalizeKeywords(c.Keywords),
		Duration:     c.Duration,
		Summary:      strings.TrimSpace(c.Summary),
		TextHash:     hash,
		CreatedAt:    now,
	}
	if in.Polarity == "" {
		in.Polarity = PolarityNegative
	}
	if len(in.Keywords) == 0 {
		in.Keywords = fallbackKeywords(r.Text)
	}
	return in
}

func normalizeKeywords(kws []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range kws {
		k = utils.Fold(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// fallbackKeywords keeps the content words of the text itself.
func fallbackKeywords(text string) []string {
	return normalizeKeywords(utils.Tokenize(text))
}

const classifyPrompt = `Classify this note into exactly one category pair:
  constraint/blocker       something prevents specific work from happening
  constraint/soft-block    something slows or discourages specific work
  opportunity/boost        something makes specific work more valuable or easier now
  capacity/energy-level    the person's available energy or time changed
  sequencing/dependency    some work should happen before other work
  information/context-only background with no effect on the work

Note: %q

Respond with JSON only:
{"type": "...", "subtype": "...", "strength": "hard|soft", "polarity": "negative|positive",
 "keywords": ["words or short phrases naming the affected work"],
 "duration": {"amount": <1-90>, "unit": "hours|days|weeks"} or null,
 "summary": "one sentence"}`
