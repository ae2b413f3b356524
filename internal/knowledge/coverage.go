package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/task"
	"github.com/josephgoksu/Wayline/internal/utils"
)

// FacetCoverage is how well one part of the goal is addressed.
type FacetCoverage struct {
	Text       string  `json:"text"`
	BestTaskID string  `json:"best_task_id,omitempty"`
	Similarity float64 `json:"similarity"`
}

// CoverageReport estimates how well a task set addresses a goal.
type CoverageReport struct {
	Score           float64         `json:"score"`
	Facets          []FacetCoverage `json:"facets"`
	MissingConcepts []string        `json:"missing_concepts,omitempty"`
	Degraded        bool            `json:"degraded"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// CoverageScorer computes goal coverage and asks the text service for
// concepts the tasks do not cover.
type CoverageScorer struct {
	scorer     *Scorer
	text       llm.TextService
	retryDelay time.Duration
}

// NewCoverageScorer creates a CoverageScorer.
func NewCoverageScorer(scorer *Scorer, text llm.TextService, retryDelay time.Duration) *CoverageScorer {
	return &CoverageScorer{scorer: scorer, text: text, retryDelay: retryDelay}
}

// Score is the mean, over goal facets, of each facet's best similarity to
// any task. It never calls the text service.
func (c *CoverageScorer) Score(ctx context.Context, goal string, tasks []task.Task) CoverageReport {
	facets := GoalFacets(goal)
	report := CoverageReport{}
	if len(facets) == 0 || len(tasks) == 0 {
		for _, f := range facets {
			report.Facets = append(report.Facets, FacetCoverage{Text: f})
		}
		return report
	}

	texts := make([]string, len(tasks))
	for i, t := range tasks {
		texts[i] = t.Text
	}
	sims, degraded := c.scorer.Matrix(ctx, facets, texts)
	best, idx := MaxPerRow(sims)

	var sum float64
	for i, f := range facets {
		fc := FacetCoverage{Text: f, Similarity: best[i]}
		if idx[i] >= 0 {
			fc.BestTaskID = tasks[idx[i]].ID
		}
		report.Facets = append(report.Facets, fc)
		sum += best[i]
	}
	report.Score = sum / float64(len(facets))
	if degraded {
		report.Degraded = true
		report.Warnings = append(report.Warnings, "coverage computed from keyword overlap")
	}
	return report
}

type missingConcepts struct {
	Concepts []string `json:"concepts" validate:"max=10,dive,min=3,max=200"`
}

const missingConceptsPrompt = `Goal:
%s

Current tasks:
%s

List up to %d concrete pieces of work the goal needs that none of the tasks cover.
Respond with JSON only: {"concepts": ["..."]}. Return an empty list if coverage is complete.`

// MissingConcepts asks the text service, with one retry, for goal concepts
// no task addresses.
func (c *CoverageScorer) MissingConcepts(ctx context.Context, goal string, tasks []task.Task, limit int) ([]string, error) {
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s\n", utils.Truncate(t.Text, 160))
	}
	req := llm.Request{
		Operation: "missing_concepts",
		System:    "You audit task plans against goals. Be specific and terse.",
		Prompt:    fmt.Sprintf(missingConceptsPrompt, goal, b.String(), limit),
	}

	var out missingConcepts
	err := llm.Retry(ctx, 2, c.retryDelay, func(ctx context.Context) error {
		var err error
		out, err = llm.Structured[missingConcepts](ctx, c.text, req, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out.Concepts) > limit {
		out.Concepts = out.Concepts[:limit]
	}
	return out.Concepts, nil
}

// GoalFacets splits a goal into its sentences. A single-sentence goal is one facet.
func GoalFacets(goal string) []string {
	parts := strings.FieldsFunc(goal, func(r rune) bool {
		return r == '.' || r == ';' || r == '\n' || r == '!' || r == '?'
	})
	var facets []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); len(p) >= 3 {
			facets = append(facets, p)
		}
	}
	return facets
}
