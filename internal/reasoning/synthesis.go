package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cloudwego/eino/compose"

	"github.com/josephgoksu/Wayline/internal/reflection"
	"github.com/josephgoksu/Wayline/internal/task"
)

// synthesisInput is what the final step turns into a plan.
type synthesisInput struct {
	ws         *workspace
	incomplete bool
	penalty    float64 // multiplier applied when incomplete
}

// ordering carries intermediate results between synthesis nodes.
type ordering struct {
	in    *synthesisInput
	graph *task.Graph
	edges []task.Edge
	order []string
	waves [][]string
}

// newSynthesizer compiles merge -> order -> waves -> score into one runnable.
func newSynthesizer(ctx context.Context) (compose.Runnable[*synthesisInput, *Plan], error) {
	g := compose.NewGraph[*synthesisInput, *Plan]()

	nodes := []struct {
		key string
		fn  *compose.Lambda
	}{
		{"merge", compose.InvokableLambda(mergeEdges)},
		{"order", compose.InvokableLambda(orderTasks)},
		{"waves", compose.InvokableLambda(groupWaves)},
		{"score", compose.InvokableLambda(scorePlan)},
	}
	prev := compose.START
	for _, n := range nodes {
		if err := g.AddLambdaNode(n.key, n.fn); err != nil {
			return nil, fmt.Errorf("add synthesis node %s: %w", n.key, err)
		}
		if err := g.AddEdge(prev, n.key); err != nil {
			return nil, fmt.Errorf("link synthesis node %s: %w", n.key, err)
		}
		prev = n.key
	}
	if err := g.AddEdge(prev, compose.END); err != nil {
		return nil, fmt.Errorf("link synthesis end: %w", err)
	}

	r, err := g.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile synthesis: %w", err)
	}
	return r, nil
}

// mergeEdges settles the edge set the plan is built from.
func mergeEdges(_ context.Context, in *synthesisInput) (*ordering, error) {
	if len(in.ws.tasks) == 0 {
		return nil, fmt.Errorf("no tasks to order")
	}
	g, edges, err := mergedGraph(in.ws)
	if err != nil {
		return nil, err
	}
	return &ordering{in: in, graph: g, edges: edges}, nil
}

func orderTasks(_ context.Context, o *ordering) (*ordering, error) {
	order, err := o.graph.Sort(priorityLess(o.in.ws))
	if err != nil {
		return nil, err
	}
	o.order = order
	return o, nil
}

func groupWaves(_ context.Context, o *ordering) (*ordering, error) {
	o.waves = o.graph.Waves(o.order)
	return o, nil
}

func scorePlan(_ context.Context, o *ordering) (*Plan, error) {
	ws := o.in.ws
	conf := make(map[string]float64, len(o.order))
	for _, id := range o.order {
		rel, ok := ws.relevance[id]
		if !ok {
			rel = 0.5
		}
		c := 0.6 + 0.4*rel - ws.penalty[id]
		if e, ok := ws.effects[id]; ok && e.Effect == reflection.KindBlocked {
			c *= 0.5
		}
		if o.in.incomplete {
			c *= o.in.penalty
		}
		conf[id] = round3(clamp01(c))
	}
	return &Plan{Order: o.order, Waves: o.waves, Edges: o.edges, Confidence: conf}, nil
}

// mergedGraph builds the graph over stored and inferred edges. If inferred
// edges make it cyclic they are discarded and the stored edges alone decide.
func mergedGraph(ws *workspace) (*task.Graph, []task.Edge, error) {
	ids := task.IDs(ws.tasks)
	edges := ws.allEdges()
	g := task.NewGraph(ids, edges)
	_, err := g.Sort(nil)
	if err == nil {
		return g, edges, nil
	}
	if len(ws.inferred) == 0 {
		return nil, nil, err
	}
	slog.Warn("inferred edges conflict with stored edges, discarding them", "error", err)
	ws.inferred = nil
	g = task.NewGraph(ids, ws.stored)
	if _, err := g.Sort(nil); err != nil {
		return nil, nil, err
	}
	return g, ws.allEdges(), nil
}

// provisionalOrder sorts the workspace tasks by dependency, breaking ties by
// priority.
func provisionalOrder(ws *workspace) ([]string, *task.Graph, error) {
	g, _, err := mergedGraph(ws)
	if err != nil {
		return nil, nil, err
	}
	order, err := g.Sort(priorityLess(ws))
	if err != nil {
		return nil, nil, err
	}
	return order, g, nil
}

// priorityLess ranks ready tasks: relevance to the goal adjusted by
// reflection effects, then cluster, then input position.
func priorityLess(ws *workspace) func(a, b string) bool {
	score := make(map[string]float64, len(ws.tasks))
	for _, t := range ws.tasks {
		p, ok := ws.relevance[t.ID]
		if !ok {
			p = 0.5
		}
		if e, ok := ws.effects[t.ID]; ok {
			switch e.Effect {
			case reflection.KindBlocked:
				p -= 10
			case reflection.KindDemoted:
				p -= e.Magnitude
			case reflection.KindBoosted:
				p += e.Magnitude
			}
		}
		score[t.ID] = round3(p)
	}
	return func(a, b string) bool {
		if score[a] != score[b] {
			return score[a] > score[b]
		}
		ca, okA := ws.clusterOf[a]
		cb, okB := ws.clusterOf[b]
		return okA && okB && ca < cb
	}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
