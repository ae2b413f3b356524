package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/josephgoksu/Wayline/internal/gaps"
	"github.com/josephgoksu/Wayline/internal/knowledge"
	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/metrics"
	"github.com/josephgoksu/Wayline/internal/task"
)

// weakFacet is the similarity under which a goal facet counts as uncovered.
const weakFacet = 0.5

// Config tunes candidate generation and deduplication.
type Config struct {
	ExistingThreshold  float64       `mapstructure:"existingThreshold" validate:"gt=0,lte=1"`
	CrossLaneThreshold float64       `mapstructure:"crossLaneThreshold" validate:"gt=0,lte=1"`
	MaxCandidates      int           `mapstructure:"maxCandidates" validate:"gte=1,lte=3"`
	RetryDelay         time.Duration `mapstructure:"retryDelay"`
	Neighbors          int           `mapstructure:"neighbors" validate:"gte=0,lte=10"`
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		ExistingThreshold:  DefaultExistingThreshold,
		CrossLaneThreshold: DefaultCrossLaneThreshold,
		MaxCandidates:      MaxCandidates,
		RetryDelay:         DefaultRetryDelay,
		Neighbors:          3,
	}
}

// Request is one bridging pass over an ordered plan.
type Request struct {
	UserID  string
	Goal    string
	Ordered []task.Task // plan order, active tasks only
	Gaps    []gaps.Gap
}

// GapResult holds the surviving candidates of one gap. Error is set when
// generation failed for the gap; Candidates is then empty.
type GapResult struct {
	Gap         gaps.Gap    `json:"gap"`
	Candidates  []Candidate `json:"candidates"`
	Error       string      `json:"error,omitempty"`
	Regenerated bool        `json:"regenerated,omitempty"`
}

// Result is the output of both lanes after deduplication.
type Result struct {
	Gaps          []GapResult `json:"gaps"`
	Semantic      []Candidate `json:"semantic"`
	SemanticError string      `json:"semantic_error,omitempty"`
	Dropped       []Dropped   `json:"dropped,omitempty"`
	Degraded      bool        `json:"degraded"`
	Warnings      []string    `json:"warnings,omitempty"`
}

// Candidates returns every surviving candidate, semantic lane first.
func (r *Result) Candidates() []Candidate {
	out := append([]Candidate{}, r.Semantic...)
	for _, g := range r.Gaps {
		out = append(out, g.Candidates...)
	}
	return out
}

// Engine runs the semantic and structural lanes.
type Engine struct {
	gen       *Generator
	dedup     *Deduplicator
	scorer    *knowledge.Scorer
	coverage  *knowledge.CoverageScorer
	docs      knowledge.DocumentSource
	neighbors int
}

// NewEngine wires an Engine. docs may be nil.
func NewEngine(text llm.TextService, scorer *knowledge.Scorer, docs knowledge.DocumentSource, cfg Config) *Engine {
	d := NewDeduplicator(scorer)
	d.SetThresholds(cfg.ExistingThreshold, cfg.CrossLaneThreshold)
	return &Engine{
		gen:       NewGenerator(text, cfg.RetryDelay, cfg.MaxCandidates),
		dedup:     d,
		scorer:    scorer,
		coverage:  knowledge.NewCoverageScorer(scorer, text, cfg.RetryDelay),
		docs:      docs,
		neighbors: cfg.Neighbors,
	}
}

// laneOutput is what a lane hands back before cross-lane filtering.
type laneOutput struct {
	generated []Candidate // everything the model produced, before dedup
	kept      []Candidate
	gapRes    []GapResult
	dropped   []Dropped
	degraded  bool
	warnings  []string
	err       string
}

// Run generates candidates for every gap and for weak goal coverage, then
// filters them. Lane failures are reported in the result, not returned.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	var semantic, structural laneOutput

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semantic = e.semanticLane(gctx, req)
		return nil
	})
	g.Go(func() error {
		structural = e.structuralLane(gctx, req)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}

	res := &Result{
		Semantic:      semantic.kept,
		SemanticError: semantic.err,
		Dropped:       append(semantic.dropped, structural.dropped...),
		Degraded:      semantic.degraded || structural.degraded,
		Warnings:      append(semantic.warnings, structural.warnings...),
	}

	// Narrow-lane candidates compete with everything the broad lane
	// generated, including proposals it later dropped itself.
	narrow := flatten(structural.gapRes)
	keptNarrow, crossDropped, degraded := e.dedup.CrossLane(ctx, semantic.generated, narrow)
	res.Dropped = append(res.Dropped, crossDropped...)
	res.Degraded = res.Degraded || degraded
	survivors := make(map[string]bool, len(keptNarrow))
	for _, c := range keptNarrow {
		survivors[c.ID] = true
	}
	for _, gr := range structural.gapRes {
		var kept []Candidate
		for _, c := range gr.Candidates {
			if survivors[c.ID] {
				kept = append(kept, c)
			}
		}
		gr.Candidates = kept
		res.Gaps = append(res.Gaps, gr)
	}

	for _, d := range res.Dropped {
		metrics.Candidates.WithLabelValues(string(d.Candidate.Lane), "dropped").Inc()
	}
	for _, c := range res.Candidates() {
		metrics.Candidates.WithLabelValues(string(c.Lane), "kept").Inc()
	}
	if res.Degraded {
		res.Warnings = appendUnique(res.Warnings, "similarity computed from keyword overlap")
	}
	return res, nil
}

func (e *Engine) structuralLane(ctx context.Context, req Request) laneOutput {
	var out laneOutput
	index := task.Index(req.Ordered)

	for i, gap := range req.Gaps {
		pred, okP := index[gap.PredecessorID]
		succ, okS := index[gap.SuccessorID]
		if !okP || !okS {
			out.gapRes = append(out.gapRes, GapResult{Gap: gap, Error: "gap references a task outside the plan"})
			continue
		}
		gc := GapContext{
			Index:       i,
			Gap:         gap,
			Goal:        req.Goal,
			Predecessor: pred,
			Successor:   succ,
			Neighbors:   e.nearest(ctx, pred.Text+" "+succ.Text, req.Ordered, pred.ID, succ.ID),
			Documents:   e.documents(req.UserID, pred.Text+" "+succ.Text),
		}

		gr := GapResult{Gap: gap}
		kept, dropped, degraded, err := e.generateGap(ctx, req.Ordered, gc)
		if err == nil && len(kept) == 0 && len(dropped) > 0 {
			gc.Avoid = droppedTexts(dropped)
			out.dropped = append(out.dropped, dropped...)
			slog.Debug("all gap candidates duplicated existing tasks, regenerating", "gap", i)
			gr.Regenerated = true
			kept, dropped, degraded, err = e.generateGap(ctx, req.Ordered, gc)
		}
		if err != nil {
			slog.Warn("candidate generation failed", "gap", i, "error", err)
			metrics.Candidates.WithLabelValues(string(LaneStructural), "failed").Inc()
			gr.Error = err.Error()
			out.gapRes = append(out.gapRes, gr)
			continue
		}
		gr.Candidates = kept
		out.dropped = append(out.dropped, dropped...)
		out.degraded = out.degraded || degraded
		out.gapRes = append(out.gapRes, gr)
	}
	return out
}

func (e *Engine) generateGap(ctx context.Context, existing []task.Task, gc GapContext) ([]Candidate, []Dropped, bool, error) {
	cands, err := e.gen.ForGap(ctx, gc)
	if err != nil {
		return nil, nil, false, err
	}
	embedded := e.dedup.Embed(ctx, cands)
	kept, dropped, degraded := e.dedup.AgainstExisting(ctx, existing, cands)
	return kept, dropped, degraded || !embedded, nil
}

func (e *Engine) semanticLane(ctx context.Context, req Request) laneOutput {
	var out laneOutput
	if strings.TrimSpace(req.Goal) == "" || len(req.Ordered) == 0 {
		return out
	}

	report := e.coverage.Score(ctx, req.Goal, req.Ordered)
	out.degraded = report.Degraded
	var weak []string
	for _, f := range report.Facets {
		if f.Similarity < weakFacet {
			weak = append(weak, f.Text)
		}
	}
	concepts, err := e.coverage.MissingConcepts(ctx, req.Goal, req.Ordered, 5)
	if err != nil {
		out.warnings = append(out.warnings, "missing concepts unavailable: "+err.Error())
		out.degraded = true
	}
	weak = append(weak, concepts...)
	if len(weak) == 0 {
		return out
	}

	cands, err := e.gen.ForCoverage(ctx, req.Goal, req.Ordered, weak)
	if err != nil {
		slog.Warn("coverage candidate generation failed", "error", err)
		metrics.Candidates.WithLabelValues(string(LaneSemantic), "failed").Inc()
		out.err = err.Error()
		return out
	}
	if !e.dedup.Embed(ctx, cands) {
		out.degraded = true
	}
	out.generated = cands

	kept, dropped, degraded := e.dedup.AgainstExisting(ctx, req.Ordered, cands)
	out.degraded = out.degraded || degraded
	out.dropped = dropped
	out.kept = e.anchor(ctx, kept, req.Ordered)
	return out
}

// anchor places each semantic candidate after its most similar task.
func (e *Engine) anchor(ctx context.Context, cands []Candidate, ordered []task.Task) []Candidate {
	if len(cands) == 0 {
		return cands
	}
	texts := make([]string, len(ordered))
	for i, t := range ordered {
		texts[i] = t.Text
	}
	sims, _ := e.scorer.Matrix(ctx, candidateTexts(cands), texts)
	_, idx := knowledge.MaxPerRow(sims)
	for i := range cands {
		if idx[i] >= 0 {
			cands[i].PredecessorID = ordered[idx[i]].ID
		}
	}
	return cands
}

// nearest returns up to e.neighbors tasks most similar to query, skipping exclude.
func (e *Engine) nearest(ctx context.Context, query string, tasks []task.Task, exclude ...string) []task.Task {
	if e.neighbors <= 0 {
		return nil
	}
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var pool []task.Task
	for _, t := range tasks {
		if !skip[t.ID] {
			pool = append(pool, t)
		}
	}
	if len(pool) == 0 {
		return nil
	}
	texts := make([]string, len(pool))
	for i, t := range pool {
		texts[i] = t.Text
	}
	sims, _ := e.scorer.Matrix(ctx, []string{query}, texts)
	order := make([]int, len(pool))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return sims[0][order[a]] > sims[0][order[b]] })
	n := min(e.neighbors, len(order))
	out := make([]task.Task, 0, n)
	for _, i := range order[:n] {
		out = append(out, pool[i])
	}
	return out
}

func (e *Engine) documents(userID, query string) []string {
	if e.docs == nil {
		return nil
	}
	snips, err := e.docs.SearchDocuments(userID, query, 2)
	if err != nil {
		slog.Warn("document lookup failed", "error", err)
		return nil
	}
	out := make([]string, 0, len(snips))
	for _, s := range snips {
		out = append(out, s.Title+": "+s.Text)
	}
	return out
}

func flatten(results []GapResult) []Candidate {
	var out []Candidate
	for _, r := range results {
		out = append(out, r.Candidates...)
	}
	return out
}

func droppedTexts(dropped []Dropped) []string {
	out := make([]string, len(dropped))
	for i, d := range dropped {
		out[i] = d.Candidate.Text
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}
