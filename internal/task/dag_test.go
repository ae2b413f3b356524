package task

import (
	"errors"
	"slices"
	"testing"
)

func TestVerifyDAG_NoCycle(t *testing.T) {
	// C depends on B, B depends on A
	edges := []Edge{
		DependsOn("task-B", "task-A", 1),
		DependsOn("task-C", "task-B", 1),
	}
	if err := VerifyDAG([]string{"task-A", "task-B", "task-C"}, edges); err != nil {
		t.Errorf("VerifyDAG() returned error for valid DAG: %v", err)
	}
}

func TestVerifyDAG_WithCycle(t *testing.T) {
	edges := []Edge{
		DependsOn("task-A", "task-C", 1),
		DependsOn("task-B", "task-A", 1),
		DependsOn("task-C", "task-B", 1),
	}
	err := VerifyDAG([]string{"task-A", "task-B", "task-C"}, edges)
	if err == nil {
		t.Fatal("VerifyDAG() should return error for cycle, got nil")
	}
	if !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if cerr.Processed != 0 || cerr.Total != 3 {
		t.Errorf("processed/total = %d/%d, want 0/3", cerr.Processed, cerr.Total)
	}
	if len(cerr.Edges) != 3 {
		t.Errorf("expected 3 cycle edges, got %d", len(cerr.Edges))
	}
}

func TestCycleError_ExcludesDownstreamNodes(t *testing.T) {
	// A <-> B cycle, D depends on B but is not part of the cycle.
	edges := []Edge{
		DependsOn("A", "B", 1),
		DependsOn("B", "A", 1),
		DependsOn("D", "B", 1),
	}
	err := VerifyDAG([]string{"A", "B", "D", "E"}, edges)
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CycleError, got %v", err)
	}
	if !slices.Equal(cerr.Nodes, []string{"A", "B"}) {
		t.Errorf("cycle nodes = %v, want [A B]", cerr.Nodes)
	}
	if cerr.Processed != 1 {
		t.Errorf("processed = %d, want 1 (only E)", cerr.Processed)
	}
}

func TestTopologicalSort_LinearDependencies(t *testing.T) {
	tasks := []Task{{ID: "task-C"}, {ID: "task-A"}, {ID: "task-B"}}
	edges := []Edge{
		DependsOn("task-C", "task-B", 1),
		DependsOn("task-B", "task-A", 1),
	}

	sorted, err := TopologicalSort(tasks, edges)
	if err != nil {
		t.Fatalf("TopologicalSort() error: %v", err)
	}
	got := IDs(sorted)
	want := []string{"task-A", "task-B", "task-C"}
	if !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestTopologicalSort_KeepsInputOrderForIndependentTasks(t *testing.T) {
	tasks := []Task{{ID: "z"}, {ID: "a"}, {ID: "m"}}
	sorted, err := TopologicalSort(tasks, nil)
	if err != nil {
		t.Fatalf("TopologicalSort() error: %v", err)
	}
	if got := IDs(sorted); !slices.Equal(got, []string{"z", "a", "m"}) {
		t.Errorf("order = %v, want input order", got)
	}
}

func TestGraph_BlocksEdgeIsNormalized(t *testing.T) {
	// "A blocks B" means B waits for A.
	edges := []Edge{{FromID: "A", ToID: "B", Relationship: RelBlocks, Confidence: 1}}
	order, err := NewGraph([]string{"B", "A"}, edges).Sort(nil)
	if err != nil {
		t.Fatalf("Sort() error: %v", err)
	}
	if !slices.Equal(order, []string{"A", "B"}) {
		t.Errorf("order = %v, want [A B]", order)
	}
}

func TestGraph_RelatedEdgesDoNotOrder(t *testing.T) {
	edges := []Edge{
		{FromID: "A", ToID: "B", Relationship: RelRelated},
		{FromID: "B", ToID: "A", Relationship: RelRelated},
	}
	if err := VerifyDAG([]string{"A", "B"}, edges); err != nil {
		t.Errorf("related edges must not form cycles: %v", err)
	}
}

func TestGraph_SortUsesPriority(t *testing.T) {
	rank := map[string]int{"A": 3, "B": 1, "C": 2}
	g := NewGraph([]string{"A", "B", "C"}, nil)
	order, err := g.Sort(func(a, b string) bool { return rank[a] < rank[b] })
	if err != nil {
		t.Fatalf("Sort() error: %v", err)
	}
	if !slices.Equal(order, []string{"B", "C", "A"}) {
		t.Errorf("order = %v, want [B C A]", order)
	}
}

func TestGraph_Waves(t *testing.T) {
	// A and B are independent; C needs both; D needs A only.
	edges := []Edge{
		DependsOn("C", "A", 1),
		DependsOn("C", "B", 1),
		DependsOn("D", "A", 1),
	}
	g := NewGraph([]string{"A", "B", "C", "D"}, edges)
	order, err := g.Sort(nil)
	if err != nil {
		t.Fatalf("Sort() error: %v", err)
	}
	waves := g.Waves(order)
	if len(waves) != 2 {
		t.Fatalf("expected 2 waves, got %d: %v", len(waves), waves)
	}
	if !slices.Equal(waves[0], []string{"A", "B"}) {
		t.Errorf("wave 1 = %v, want [A B]", waves[0])
	}
	if !slices.Equal(waves[1], []string{"C", "D"}) {
		t.Errorf("wave 2 = %v, want [C D]", waves[1])
	}

	// No node may depend on a node in its own or a later wave.
	waveOf := map[string]int{}
	for i, w := range waves {
		for _, id := range w {
			waveOf[id] = i
		}
	}
	for _, e := range edges {
		dependent, prereq := e.Dependency()
		if waveOf[prereq] >= waveOf[dependent] {
			t.Errorf("%s (wave %d) depends on %s (wave %d)", dependent, waveOf[dependent]+1, prereq, waveOf[prereq]+1)
		}
	}
}

func TestGraph_Connected(t *testing.T) {
	g := NewGraph(nil, []Edge{DependsOn("B", "A", 1)})
	if !g.Connected("A", "B") || !g.Connected("B", "A") {
		t.Error("expected A and B connected in both directions")
	}
	if g.Connected("A", "C") {
		t.Error("A and C should not be connected")
	}
}
