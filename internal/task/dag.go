package task

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

// CycleError reports a failed topological sort with the nodes and edges
// that keep the graph from being ordered.
type CycleError struct {
	Processed int      `json:"processed"`
	Total     int      `json:"total"`
	Nodes     []string `json:"nodes"`
	Edges     []Edge   `json:"edges"`
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected (%d of %d tasks sorted) involving %s",
		e.Processed, e.Total, strings.Join(e.Nodes, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Graph is the ordering view of a task graph. Arcs run prerequisite -> dependent.
// Related edges are ignored.
type Graph struct {
	nodes   []string
	known   map[string]bool
	out     map[string][]string
	prereqs map[string][]string
	arcs    map[[2]string]Edge
}

// NewGraph builds a graph over nodeIDs. Edge endpoints missing from nodeIDs
// are added as nodes.
func NewGraph(nodeIDs []string, edges []Edge) *Graph {
	g := &Graph{
		known:   make(map[string]bool, len(nodeIDs)),
		out:     make(map[string][]string),
		prereqs: make(map[string][]string),
		arcs:    make(map[[2]string]Edge),
	}
	for _, id := range nodeIDs {
		g.addNode(id)
	}
	for _, e := range edges {
		if !e.Orders() {
			continue
		}
		dependent, prereq := e.Dependency()
		g.addNode(dependent)
		g.addNode(prereq)
		arc := [2]string{prereq, dependent}
		if _, dup := g.arcs[arc]; dup {
			continue
		}
		g.arcs[arc] = e
		g.out[prereq] = append(g.out[prereq], dependent)
		g.prereqs[dependent] = append(g.prereqs[dependent], prereq)
	}
	return g
}

func (g *Graph) addNode(id string) {
	if id == "" || g.known[id] {
		return
	}
	g.known[id] = true
	g.nodes = append(g.nodes, id)
}

// Len returns the node count.
func (g *Graph) Len() int { return len(g.nodes) }

// Prerequisites returns the direct prerequisites of id.
func (g *Graph) Prerequisites(id string) []string { return g.prereqs[id] }

// Connected reports whether an ordering arc joins a and b in either direction.
func (g *Graph) Connected(a, b string) bool {
	_, ab := g.arcs[[2]string{a, b}]
	_, ba := g.arcs[[2]string{b, a}]
	return ab || ba
}

// Sort runs Kahn's algorithm. Among ready nodes the one ranked first by less
// is emitted next; a nil less falls back to insertion order.
// If fewer nodes are processed than exist, it returns a *CycleError.
func (g *Graph) Sort(less func(a, b string) bool) ([]string, error) {
	pos := make(map[string]int, len(g.nodes))
	for i, id := range g.nodes {
		pos[id] = i
	}
	if less == nil {
		less = func(a, b string) bool { return pos[a] < pos[b] }
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, id := range g.nodes {
		inDegree[id] = len(g.prereqs[id])
	}

	var ready []string
	for _, id := range g.nodes {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		slices.SortStableFunc(ready, func(a, b string) int {
			switch {
			case less(a, b):
				return -1
			case less(b, a):
				return 1
			}
			return pos[a] - pos[b]
		})
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range g.out[next] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) < len(g.nodes) {
		return nil, g.cycleError(len(order), inDegree)
	}
	return order, nil
}

// cycleError narrows the unsorted remainder to the nodes that sit on or
// between cycles by peeling off nodes with no unsorted dependents.
func (g *Graph) cycleError(processed int, inDegree map[string]int) *CycleError {
	left := make(map[string]bool)
	for _, id := range g.nodes {
		if inDegree[id] > 0 {
			left[id] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for id := range left {
			hasDependent := false
			for _, dep := range g.out[id] {
				if left[dep] {
					hasDependent = true
					break
				}
			}
			if !hasDependent {
				delete(left, id)
				changed = true
			}
		}
	}

	cerr := &CycleError{Processed: processed, Total: len(g.nodes)}
	for _, id := range g.nodes {
		if left[id] {
			cerr.Nodes = append(cerr.Nodes, id)
		}
	}
	for arc, e := range g.arcs {
		if left[arc[0]] && left[arc[1]] {
			cerr.Edges = append(cerr.Edges, e)
		}
	}
	slices.SortFunc(cerr.Edges, func(a, b Edge) int { return strings.Compare(a.Key(), b.Key()) })
	return cerr
}

// Waves partitions a topological order into execution waves. A node lands
// one wave after the latest of its prerequisites; wave 1 has none.
func (g *Graph) Waves(order []string) [][]string {
	level := make(map[string]int, len(order))
	maxLevel := 0
	for _, id := range order {
		l := 1
		for _, p := range g.prereqs[id] {
			if level[p]+1 > l {
				l = level[p] + 1
			}
		}
		level[id] = l
		if l > maxLevel {
			maxLevel = l
		}
	}
	waves := make([][]string, maxLevel)
	for _, id := range order {
		waves[level[id]-1] = append(waves[level[id]-1], id)
	}
	return waves
}

// VerifyDAG reports a *CycleError if the ordering edges over nodeIDs contain a cycle.
func VerifyDAG(nodeIDs []string, edges []Edge) error {
	_, err := NewGraph(nodeIDs, edges).Sort(nil)
	return err
}

// TopologicalSort returns tasks in dependency order (prerequisites first),
// keeping input order among independent tasks.
func TopologicalSort(tasks []Task, edges []Edge) ([]Task, error) {
	g := NewGraph(IDs(tasks), edges)
	order, err := g.Sort(nil)
	if err != nil {
		return nil, err
	}
	byID := Index(tasks)
	sorted := make([]Task, 0, len(tasks))
	for _, id := range order {
		if t, ok := byID[id]; ok {
			sorted = append(sorted, t)
		}
	}
	return sorted, nil
}
