package bridge

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/josephgoksu/Wayline/internal/gaps"
	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/task"
	"github.com/josephgoksu/Wayline/internal/utils"
)

const (
	// DefaultRetryDelay is the pause before the single retry.
	DefaultRetryDelay = 500 * time.Millisecond

	// MaxCandidates per gap.
	MaxCandidates = 3

	maxContextRunes = 600
)

// proposal is the model's schema for one candidate.
type proposal struct {
	Text            string  `json:"text" validate:"required,min=10,max=500"`
	EstimatedEffort float64 `json:"estimated_effort" validate:"gte=0.25,lte=160"`
	CognitionLevel  string  `json:"cognition_level" validate:"required,oneof=low medium high"`
	Confidence      float64 `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning       string  `json:"reasoning" validate:"required,max=600"`
}

type proposalSet struct {
	Candidates []proposal `json:"candidates" validate:"required,min=1,max=10,dive"`
}

// GapContext is everything the generator sees for one gap.
type GapContext struct {
	Index       int
	Gap         gaps.Gap
	Goal        string
	Predecessor task.Task
	Successor   task.Task
	Neighbors   []task.Task
	Documents   []string
	Avoid       []string // texts rejected on a previous attempt
}

// Generator turns gaps and coverage holes into candidates.
type Generator struct {
	text       llm.TextService
	retryDelay time.Duration
	limit      int
	gapTmpl    *template.Template
	cover      *template.Template
}

// NewGenerator creates a Generator. limit is clamped to 1..3.
func NewGenerator(text llm.TextService, retryDelay time.Duration, limit int) *Generator {
	if limit <= 0 || limit > MaxCandidates {
		limit = MaxCandidates
	}
	funcs := template.FuncMap{"clip": func(s string) string { return utils.Truncate(s, maxContextRunes) }}
	return &Generator{
		text:       text,
		retryDelay: retryDelay,
		limit:      limit,
		gapTmpl:    template.Must(template.New("gap").Funcs(funcs).Parse(gapPromptTemplate)),
		cover:      template.Must(template.New("coverage").Funcs(funcs).Parse(coveragePromptTemplate)),
	}
}

// ForGap proposes 1..limit tasks that bridge the gap. The text service gets
// one retry; a second failure returns the error and no candidates.
func (g *Generator) ForGap(ctx context.Context, gc GapContext) ([]Candidate, error) {
	prompt, err := render(g.gapTmpl, map[string]any{
		"Goal":        gc.Goal,
		"Predecessor": gc.Predecessor,
		"Successor":   gc.Successor,
		"Gap":         gc.Gap,
		"Neighbors":   gc.Neighbors,
		"Documents":   gc.Documents,
		"Avoid":       gc.Avoid,
		"Max":         g.limit,
	})
	if err != nil {
		return nil, err
	}
	props, err := g.generate(ctx, "bridge_gap", prompt)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(props))
	for _, p := range props {
		c := newCandidate(LaneStructural, p, gc.Index)
		c.PredecessorID = gc.Predecessor.ID
		c.SuccessorID = gc.Successor.ID
		out = append(out, c)
	}
	return out, nil
}

// ForCoverage proposes tasks for goal facets the plan covers weakly.
// Anchoring is left to the caller.
func (g *Generator) ForCoverage(ctx context.Context, goal string, tasks []task.Task, weakFacets []string) ([]Candidate, error) {
	prompt, err := render(g.cover, map[string]any{
		"Goal":  goal,
		"Tasks": tasks,
		"Weak":  weakFacets,
		"Max":   g.limit,
	})
	if err != nil {
		return nil, err
	}
	props, err := g.generate(ctx, "bridge_coverage", prompt)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(props))
	for _, p := range props {
		out = append(out, newCandidate(LaneSemantic, p, -1))
	}
	return out, nil
}

func (g *Generator) generate(ctx context.Context, op, prompt string) ([]proposal, error) {
	req := llm.Request{
		Operation: op,
		System:    "You repair task plans by proposing the missing steps. Output JSON only.",
		Prompt:    prompt,
	}
	var set proposalSet
	err := llm.Retry(ctx, 2, g.retryDelay, func(ctx context.Context) error {
		var err error
		set, err = llm.Structured[proposalSet](ctx, g.text, req, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("generate candidates: %w", err)
	}
	if len(set.Candidates) > g.limit {
		set.Candidates = set.Candidates[:g.limit]
	}
	for i := range set.Candidates {
		set.Candidates[i].Text = strings.TrimSpace(set.Candidates[i].Text)
	}
	return set.Candidates, nil
}

func render(t *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

const gapPromptTemplate = `Goal: {{.Goal}}

Two consecutive tasks in the plan do not connect well:
  BEFORE: {{clip .Predecessor.Text}} (effort {{.Predecessor.EstimatedEffort}}h)
  AFTER:  {{clip .Successor.Text}} (effort {{.Successor.EstimatedEffort}}h)
Signals: time jump={{.Gap.Indicators.TimeJump}}, phase jump={{.Gap.Indicators.PhaseJump}}{{if .Gap.FromPhase}} ({{.Gap.FromPhase}} -> {{.Gap.ToPhase}}){{end}}, missing dependency={{.Gap.Indicators.MissingEdge}}, skill jump={{.Gap.Indicators.SkillJump}}
{{if .Neighbors}}
Related existing tasks (do not repeat these):
{{range .Neighbors}}  - {{clip .Text}}
{{end}}{{end}}{{if .Documents}}
Reference material:
{{range .Documents}}  > {{clip .}}
{{end}}{{end}}{{if .Avoid}}
These proposals were rejected as duplicates of existing work; propose something different:
{{range .Avoid}}  - {{.}}
{{end}}{{end}}
Propose 1 to {{.Max}} tasks, in execution order, that belong between BEFORE and AFTER.
Respond with JSON only:
{"candidates": [{"text": "...", "estimated_effort": <hours>, "cognition_level": "low|medium|high", "confidence": <0..1>, "reasoning": "..."}]}`

const coveragePromptTemplate = `Goal: {{.Goal}}

Current tasks:
{{range .Tasks}}  - {{clip .Text}}
{{end}}{{if .Weak}}
Parts of the goal the tasks barely address:
{{range .Weak}}  - {{.}}
{{end}}{{end}}
Propose 1 to {{.Max}} new tasks that close the largest coverage holes. Do not restate existing tasks.
Respond with JSON only:
{"candidates": [{"text": "...", "estimated_effort": <hours>, "cognition_level": "low|medium|high", "confidence": <0..1>, "reasoning": "..."}]}`
