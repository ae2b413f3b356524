package reasoning

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/josephgoksu/Wayline/internal/gaps"
	"github.com/josephgoksu/Wayline/internal/knowledge"
	"github.com/josephgoksu/Wayline/internal/reflection"
	"github.com/josephgoksu/Wayline/internal/task"
)

// clusterThreshold is the similarity at which tasks share a cluster.
const clusterThreshold = 0.8

// gapPenalty is subtracted from a successor's confidence per gap.
const gapPenalty = 0.1

// workspace is the state tools read and write during one session.
type workspace struct {
	userID  string
	goal    string
	tasks   []task.Task
	index   map[string]task.Task
	effects map[string]reflection.Effect

	stored    []task.Edge
	inferred  []task.Edge
	relevance map[string]float64
	coverage  float64
	documents []knowledge.Snippet
	clusterOf map[string]int
	penalty   map[string]float64
	gapCount  int

	sims     [][]float64 // task x task, computed lazily
	degraded bool
	ran      map[ToolName]bool
}

func newWorkspace(req Request) *workspace {
	ws := &workspace{
		userID:    req.UserID,
		goal:      req.Goal,
		tasks:     req.Tasks,
		index:     task.Index(req.Tasks),
		effects:   make(map[string]reflection.Effect, len(req.Effects)),
		relevance: map[string]float64{},
		clusterOf: map[string]int{},
		penalty:   map[string]float64{},
		ran:       map[ToolName]bool{},
	}
	for _, e := range req.Effects {
		ws.effects[e.TaskID] = e
	}
	return ws
}

func (ws *workspace) texts() []string {
	out := make([]string, len(ws.tasks))
	for i, t := range ws.tasks {
		out[i] = t.Text
	}
	return out
}

func (ws *workspace) similarities(ctx context.Context, s *knowledge.Scorer) [][]float64 {
	if ws.sims == nil {
		texts := ws.texts()
		var degraded bool
		ws.sims, degraded = s.Matrix(ctx, texts, texts)
		ws.degraded = ws.degraded || degraded
	}
	return ws.sims
}

// toolFunc runs one tool. input and output are recorded in the trace.
type toolFunc func(ctx context.Context, o *Orchestrator, ws *workspace) (input, output any, err error)

// dispatch is the single table mapping tool names to implementations.
var dispatch = map[ToolName]toolFunc{
	ToolGraphQuery:           runGraphQuery,
	ToolSemanticSearch:       runSemanticSearch,
	ToolDocumentContext:      runDocumentContext,
	ToolDependencyInference:  runDependencyInference,
	ToolSimilarityClustering: runSimilarityClustering,
	ToolGapScan:              runGapScan,
}

// descriptions are shown to the model-driven selector.
var descriptions = map[ToolName]string{
	ToolGraphQuery:           "Load the stored dependency edges between the tasks.",
	ToolSemanticSearch:       "Score each task's relevance to the goal and estimate goal coverage.",
	ToolDocumentContext:      "Look up reference documents related to the goal.",
	ToolDependencyInference:  "Infer likely prerequisite edges from workflow phases and text similarity.",
	ToolSimilarityClustering: "Group near-identical tasks so related work stays adjacent.",
	ToolGapScan:              "Check the provisional order for discontinuities between adjacent tasks.",
}

func runGraphQuery(_ context.Context, o *Orchestrator, ws *workspace) (any, any, error) {
	in := map[string]any{"user_id": ws.userID, "tasks": len(ws.tasks)}
	if o.graph == nil {
		return in, nil, errors.New("no graph source configured")
	}
	edges, err := o.graph.ListEdges(ws.userID)
	if err != nil {
		return in, nil, fmt.Errorf("list edges: %w", err)
	}
	ws.stored = ws.stored[:0]
	for _, e := range edges {
		_, okFrom := ws.index[e.FromID]
		_, okTo := ws.index[e.ToID]
		if okFrom && okTo {
			ws.stored = append(ws.stored, e)
		}
	}
	return in, map[string]any{"edges": len(ws.stored)}, nil
}

func runSemanticSearch(ctx context.Context, o *Orchestrator, ws *workspace) (any, any, error) {
	in := map[string]any{"goal": ws.goal}
	if ws.goal == "" {
		return in, nil, errors.New("no goal to search against")
	}
	sims, degraded := o.scorer.Matrix(ctx, []string{ws.goal}, ws.texts())
	ws.degraded = ws.degraded || degraded
	for i, t := range ws.tasks {
		ws.relevance[t.ID] = sims[0][i]
	}
	report := o.coverage.Score(ctx, ws.goal, ws.tasks)
	ws.coverage = report.Score

	type hit struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	}
	hits := make([]hit, 0, len(ws.tasks))
	for _, t := range ws.tasks {
		hits = append(hits, hit{t.ID, ws.relevance[t.ID]})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > 5 {
		hits = hits[:5]
	}
	return in, map[string]any{"top": hits, "coverage": report.Score, "degraded": degraded}, nil
}

func runDocumentContext(_ context.Context, o *Orchestrator, ws *workspace) (any, any, error) {
	in := map[string]any{"query": ws.goal, "limit": 3}
	if o.docs == nil {
		return in, map[string]any{"documents": []string{}}, nil
	}
	snips, err := o.docs.SearchDocuments(ws.userID, ws.goal, 3)
	if err != nil {
		return in, nil, fmt.Errorf("search documents: %w", err)
	}
	ws.documents = snips
	titles := make([]string, len(snips))
	for i, s := range snips {
		titles[i] = s.Title
	}
	return in, map[string]any{"documents": titles}, nil
}

// runDependencyInference proposes "later phase depends on earlier phase"
// edges between similar tasks that have no stored edge. Edges that would
// close a cycle with what is already known are skipped.
func runDependencyInference(ctx context.Context, o *Orchestrator, ws *workspace) (any, any, error) {
	in := map[string]any{"threshold": o.cfg.InferenceThreshold}
	sims := ws.similarities(ctx, o.scorer)

	phases := make([]gaps.Phase, len(ws.tasks))
	for i, t := range ws.tasks {
		phases[i] = gaps.PhaseOf(t.Text)
	}
	known := task.NewGraph(task.IDs(ws.tasks), ws.stored)

	var proposed []task.Edge
	for i := range ws.tasks {
		for j := range ws.tasks {
			if phases[i] == gaps.PhaseUnknown || phases[j] == gaps.PhaseUnknown || phases[i] >= phases[j] {
				continue
			}
			if sims[i][j] < o.cfg.InferenceThreshold {
				continue
			}
			a, b := ws.tasks[i].ID, ws.tasks[j].ID
			if known.Connected(a, b) {
				continue
			}
			e := task.DependsOn(b, a, sims[i][j])
			e.DetectionMethod = task.DetectionInferred
			proposed = append(proposed, e)
		}
	}

	ws.inferred = ws.inferred[:0]
	if task.VerifyDAG(task.IDs(ws.tasks), append(append([]task.Edge{}, ws.stored...), proposed...)) == nil {
		ws.inferred = append(ws.inferred, proposed...)
	} else {
		for _, e := range proposed {
			trial := append(append(append([]task.Edge{}, ws.stored...), ws.inferred...), e)
			if task.VerifyDAG(task.IDs(ws.tasks), trial) == nil {
				ws.inferred = append(ws.inferred, e)
			}
		}
	}
	return in, map[string]any{"inferred": len(ws.inferred), "considered": len(proposed)}, nil
}

func runSimilarityClustering(ctx context.Context, o *Orchestrator, ws *workspace) (any, any, error) {
	in := map[string]any{"threshold": clusterThreshold}
	sims := ws.similarities(ctx, o.scorer)
	clusters := knowledge.Cluster(task.IDs(ws.tasks), sims, clusterThreshold)
	var multi [][]string
	for i, c := range clusters {
		for _, id := range c {
			ws.clusterOf[id] = i
		}
		if len(c) > 1 {
			multi = append(multi, c)
		}
	}
	return in, map[string]any{"clusters": multi}, nil
}

func runGapScan(ctx context.Context, o *Orchestrator, ws *workspace) (any, any, error) {
	in := map[string]any{"max_gaps": o.detector.MaxGaps()}
	order, _, err := provisionalOrder(ws)
	if err != nil {
		return in, nil, err
	}
	ordered := make([]task.Task, 0, len(order))
	for _, id := range order {
		ordered = append(ordered, ws.index[id])
	}
	found := o.detector.Detect(ordered, ws.allEdges())
	for k := range ws.penalty {
		delete(ws.penalty, k)
	}
	for _, g := range found {
		ws.penalty[g.SuccessorID] += gapPenalty
	}
	ws.gapCount = len(found)
	return in, map[string]any{"gaps": found}, nil
}

func (ws *workspace) allEdges() []task.Edge {
	return append(append([]task.Edge{}, ws.stored...), ws.inferred...)
}
