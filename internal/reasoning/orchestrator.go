package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/cloudwego/eino/compose"

	"github.com/josephgoksu/Wayline/internal/gaps"
	"github.com/josephgoksu/Wayline/internal/knowledge"
	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/metrics"
	"github.com/josephgoksu/Wayline/internal/reflection"
	"github.com/josephgoksu/Wayline/internal/task"
)

var tracer = otel.Tracer("wayline/reasoning")

// Selector names accepted in Config.
const (
	SelectorDeterministic = "deterministic"
	SelectorLLM           = "llm"
)

// Config bounds a session.
type Config struct {
	MaxSteps           int           `mapstructure:"maxSteps" validate:"gte=2"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxTasks           int           `mapstructure:"maxTasks" validate:"gte=1"`
	Selector           string        `mapstructure:"selector" validate:"oneof=deterministic llm"`
	IncompletePenalty  float64       `mapstructure:"incompletePenalty" validate:"gt=0,lte=1"`
	InferenceThreshold float64       `mapstructure:"inferenceThreshold" validate:"gt=0,lte=1"`
}

// DefaultConfig returns the standard bounds.
func DefaultConfig() Config {
	return Config{
		MaxSteps:           MaxSteps,
		Timeout:            30 * time.Second,
		MaxTasks:           200,
		Selector:           SelectorDeterministic,
		IncompletePenalty:  0.7,
		InferenceThreshold: 0.55,
	}
}

// GraphSource provides the stored edges of a user's graph.
type GraphSource interface {
	ListEdges(userID string) ([]task.Edge, error)
}

// Deps are the orchestrator's collaborators. Graph and Docs may be nil.
type Deps struct {
	Graph    GraphSource
	Docs     knowledge.DocumentSource
	Scorer   *knowledge.Scorer
	Text     llm.TextService
	Detector *gaps.Detector
}

// Request is one session's input.
type Request struct {
	SessionID string
	UserID    string
	Goal      string
	Tasks     []task.Task
	Effects   []reflection.Effect
}

// Orchestrator runs the bounded reasoning loop.
type Orchestrator struct {
	cfg      Config
	graph    GraphSource
	docs     knowledge.DocumentSource
	scorer   *knowledge.Scorer
	coverage *knowledge.CoverageScorer
	detector *gaps.Detector
	selector Selector
	synth    compose.Runnable[*synthesisInput, *Plan]
}

// NewOrchestrator wires an Orchestrator. MaxSteps is clamped to 2..10.
func NewOrchestrator(ctx context.Context, deps Deps, cfg Config) (*Orchestrator, error) {
	def := DefaultConfig()
	if cfg.MaxSteps <= 0 || cfg.MaxSteps > MaxSteps {
		cfg.MaxSteps = MaxSteps
	}
	if cfg.MaxSteps < 2 {
		cfg.MaxSteps = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.IncompletePenalty <= 0 || cfg.IncompletePenalty > 1 {
		cfg.IncompletePenalty = def.IncompletePenalty
	}
	if cfg.InferenceThreshold <= 0 || cfg.InferenceThreshold > 1 {
		cfg.InferenceThreshold = def.InferenceThreshold
	}
	if deps.Scorer == nil {
		deps.Scorer = knowledge.NewScorer(nil)
	}
	if deps.Text == nil {
		deps.Text = llm.Unavailable{}
	}
	if deps.Detector == nil {
		deps.Detector = gaps.NewDetector(gaps.DefaultConfig())
	}

	synth, err := newSynthesizer(ctx)
	if err != nil {
		return nil, err
	}
	var sel Selector = DeterministicSelector{}
	if cfg.Selector == SelectorLLM {
		sel = NewLLMSelector(deps.Text)
	}
	return &Orchestrator{
		cfg:      cfg,
		graph:    deps.Graph,
		docs:     deps.Docs,
		scorer:   deps.Scorer,
		coverage: knowledge.NewCoverageScorer(deps.Scorer, deps.Text, 0),
		detector: deps.Detector,
		selector: sel,
		synth:    synth,
	}, nil
}

// WithSelector replaces the tool selector.
func (o *Orchestrator) WithSelector(s Selector) *Orchestrator {
	o.selector = s
	return o
}

// Run executes one session. It always returns a session: tool failures are
// recorded in the trace, and only a session that cannot order its tasks
// ends in StatusFailed. The trace never exceeds MaxSteps entries, the last
// of which is synthesis.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Session {
	sess := NewSession(req.UserID, req.Goal, task.IDs(req.Tasks))
	if req.SessionID != "" {
		sess.ID = req.SessionID
	}
	start := time.Now()

	ctx, span := tracer.Start(ctx, "reasoning.session")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sess.ID), attribute.Int("tasks", len(req.Tasks)))

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	ws := newWorkspace(req)
	finished := len(req.Tasks) == 0 // nothing to analyse; synthesis reports the failure
	for step := 1; !finished && step < o.cfg.MaxSteps; step++ {
		if runCtx.Err() != nil {
			sess.Metadata.TimedOut = true
			break
		}
		d := o.selector.Next(runCtx, progress(ws, step, o.cfg.MaxSteps))
		if d.Finish {
			finished = true
			break
		}
		if !d.Tool.Valid() || ws.ran[d.Tool] {
			slog.Warn("selector returned an unusable tool", "tool", d.Tool)
			finished = true
			break
		}
		rec := o.runStep(runCtx, step, d, ws)
		sess.Trace = append(sess.Trace, rec)
		sess.Metadata.ToolCalls[d.Tool]++
		if rec.Status == StepFailed {
			sess.Metadata.Errors++
		}
	}
	if !finished && !sess.Metadata.TimedOut {
		if runCtx.Err() != nil {
			sess.Metadata.TimedOut = true
		} else if len(progress(ws, 0, 0).Remaining) > 0 {
			sess.Metadata.StepCapReached = true
		} else {
			finished = true
		}
	}
	sess.Metadata.Incomplete = !finished

	// Synthesis is CPU-bound and runs even after the deadline so a partial
	// plan is always produced.
	synthCtx := context.WithoutCancel(ctx)
	stepStart := time.Now()
	plan, err := o.synth.Invoke(synthCtx, &synthesisInput{ws: ws, incomplete: sess.Metadata.Incomplete, penalty: o.cfg.IncompletePenalty})
	synthStep := Step{
		Number:     len(sess.Trace) + 1,
		Thought:    fmt.Sprintf("synthesize plan from %d stored and %d inferred edges", len(ws.stored), len(ws.inferred)),
		DurationMS: time.Since(stepStart).Milliseconds(),
		Status:     StepCompleted,
	}
	if err != nil {
		synthStep.Status = StepFailed
		synthStep.Error = err.Error()
		sess.Metadata.Errors++
	} else {
		synthStep.Output = marshal(map[string]any{"ordered": len(plan.Order), "waves": len(plan.Waves)})
	}
	sess.Trace = append(sess.Trace, synthStep)

	sess.Metadata.Steps = len(sess.Trace)
	sess.Metadata.Coverage = ws.coverage
	sess.Metadata.GapCount = ws.gapCount
	sess.Metadata.Degraded = ws.degraded
	if ws.degraded {
		sess.Metadata.Warnings = append(sess.Metadata.Warnings, "similarity computed from keyword overlap")
	}
	if sess.Metadata.TimedOut {
		sess.Metadata.Warnings = append(sess.Metadata.Warnings, fmt.Sprintf("time budget of %s exhausted; confidence reduced", o.cfg.Timeout))
	}
	if sess.Metadata.StepCapReached {
		sess.Metadata.Warnings = append(sess.Metadata.Warnings, fmt.Sprintf("step limit of %d reached; confidence reduced", o.cfg.MaxSteps))
	}
	sess.Metadata.DurationMS = time.Since(start).Milliseconds()
	done := time.Now().UTC()
	sess.CompletedAt = &done

	if err != nil {
		sess.Status = StatusFailed
		sess.Error = err.Error()
		span.SetStatus(codes.Error, err.Error())
	} else {
		sess.Status = StatusCompleted
		sess.Plan = plan
	}
	metrics.ReasoningSessions.WithLabelValues(string(sess.Status)).Inc()
	slog.Info("reasoning session finished", "session_id", sess.ID, "user_id", sess.UserID, "status", sess.Status, "steps", len(sess.Trace))
	return sess
}

func (o *Orchestrator) runStep(ctx context.Context, number int, d Decision, ws *workspace) Step {
	ctx, span := tracer.Start(ctx, "reasoning.step")
	defer span.End()
	span.SetAttributes(attribute.String("tool", string(d.Tool)), attribute.Int("step", number))

	start := time.Now()
	input, output, err := dispatch[d.Tool](ctx, o, ws)
	ws.ran[d.Tool] = true

	rec := Step{
		Number:     number,
		Tool:       d.Tool,
		Input:      marshal(input),
		Thought:    d.Thought,
		DurationMS: time.Since(start).Milliseconds(),
		Status:     StepCompleted,
	}
	if err != nil {
		rec.Status = StepFailed
		rec.Error = err.Error()
		span.RecordError(err)
		slog.Warn("reasoning tool failed", "tool", d.Tool, "error", err)
	} else {
		rec.Output = marshal(output)
	}
	metrics.ReasoningSteps.WithLabelValues(string(d.Tool), string(rec.Status)).Inc()
	return rec
}

func progress(ws *workspace, step, maxSteps int) Progress {
	p := Progress{Goal: ws.goal, Tasks: len(ws.tasks), Step: step, MaxSteps: maxSteps}
	for _, t := range AllTools {
		if ws.ran[t] {
			p.Ran = append(p.Ran, t)
		} else {
			p.Remaining = append(p.Remaining, t)
		}
	}
	return p
}

func marshal(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
