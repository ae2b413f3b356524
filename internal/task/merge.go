package task

import (
	"fmt"
)

// Insertion is a chain of new tasks placed between a predecessor and a
// successor. Either end may be empty.
type Insertion struct {
	PredecessorID string `json:"predecessor_id,omitempty"`
	SuccessorID   string `json:"successor_id,omitempty"`
	Tasks         []Task `json:"tasks"`
}

// MergePlan is a verified write set. Applying it to the graph it was
// planned against leaves the graph acyclic.
type MergePlan struct {
	NewTasks    []Task   `json:"new_tasks"`
	AddEdges    []Edge   `json:"add_edges"`
	RemoveEdges []Edge   `json:"remove_edges"`
	Order       []string `json:"order"`
}

// InsertedIDs returns the ids of the new tasks in chain order.
func (p *MergePlan) InsertedIDs() []string {
	return IDs(p.NewTasks)
}

// PlanMerge chains each insertion and proves the merged graph acyclic.
//
// Within an insertion the first task depends on the predecessor, each later
// task on the one before it, and the successor's dependency on the
// predecessor is rewritten to point at the chain tail (added if absent).
// Nothing is returned but an error if any check fails, so callers can
// treat a non-nil plan as safe to commit.
func PlanMerge(existing []Task, edges []Edge, batch []Insertion) (*MergePlan, error) {
	known := Index(existing)
	working := make([]Edge, len(edges))
	copy(working, edges)

	plan := &MergePlan{}
	seen := make(map[string]bool)

	for i, ins := range batch {
		if len(ins.Tasks) == 0 {
			return nil, fmt.Errorf("%w: insertion %d has no tasks", ErrInvalidTask, i)
		}
		for _, end := range []string{ins.PredecessorID, ins.SuccessorID} {
			if end == "" {
				continue
			}
			t, ok := known[end]
			if !ok {
				return nil, fmt.Errorf("%w: insertion %d references unknown task %s", ErrInvalidTask, i, end)
			}
			if t.Archived {
				return nil, fmt.Errorf("%w: insertion %d references archived task %s", ErrInvalidTask, i, end)
			}
		}

		prev := ins.PredecessorID
		for _, nt := range ins.Tasks {
			if nt.ID == "" {
				return nil, fmt.Errorf("%w: new task without id", ErrInvalidTask)
			}
			if _, clash := known[nt.ID]; clash || seen[nt.ID] {
				return nil, fmt.Errorf("%w: duplicate task id %s", ErrInvalidTask, nt.ID)
			}
			if err := nt.Validate(); err != nil {
				return nil, fmt.Errorf("task %s: %w", nt.ID, err)
			}
			seen[nt.ID] = true
			plan.NewTasks = append(plan.NewTasks, nt)
			if prev != "" {
				e := DependsOn(nt.ID, prev, nt.Confidence)
				working = append(working, e)
				plan.AddEdges = append(plan.AddEdges, e)
			}
			prev = nt.ID
		}

		if ins.SuccessorID == "" {
			continue
		}
		tail := prev
		confidence := 1.0
		if ins.PredecessorID != "" {
			kept := working[:0]
			for _, e := range working {
				dependent, prereq := e.Dependency()
				if e.Orders() && dependent == ins.SuccessorID && prereq == ins.PredecessorID {
					plan.RemoveEdges = append(plan.RemoveEdges, e)
					confidence = e.Confidence
					continue
				}
				kept = append(kept, e)
			}
			working = kept
		}
		e := DependsOn(ins.SuccessorID, tail, confidence)
		working = append(working, e)
		plan.AddEdges = append(plan.AddEdges, e)
	}

	nodes := IDs(existing)
	nodes = append(nodes, plan.InsertedIDs()...)
	order, err := NewGraph(nodes, working).Sort(nil)
	if err != nil {
		return nil, err
	}
	plan.Order = order
	plan.RemoveEdges = pruneAdded(plan.RemoveEdges, plan.AddEdges)
	plan.AddEdges = pruneRemoved(plan.AddEdges, working)
	return plan, nil
}

// PlanLink verifies that adding edges keeps the graph acyclic.
func PlanLink(existing []Task, edges []Edge, add []Edge) (*MergePlan, error) {
	known := Index(existing)
	for _, e := range add {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		for _, id := range []string{e.FromID, e.ToID} {
			if _, ok := known[id]; !ok {
				return nil, fmt.Errorf("%w: unknown task %s", ErrInvalidTask, id)
			}
		}
	}
	all := append(append([]Edge{}, edges...), add...)
	order, err := NewGraph(IDs(existing), all).Sort(nil)
	if err != nil {
		return nil, err
	}
	return &MergePlan{AddEdges: add, Order: order}, nil
}

// pruneAdded drops removals of edges this plan itself added.
func pruneAdded(removed, added []Edge) []Edge {
	addedKeys := make(map[string]bool, len(added))
	for _, e := range added {
		addedKeys[e.Key()] = true
	}
	out := removed[:0]
	for _, e := range removed {
		if !addedKeys[e.Key()] {
			out = append(out, e)
		}
	}
	return out
}

// pruneRemoved keeps only added edges that survived later rewrites.
func pruneRemoved(added, final []Edge) []Edge {
	finalKeys := make(map[string]bool, len(final))
	for _, e := range final {
		finalKeys[e.Key()] = true
	}
	out := added[:0]
	for _, e := range added {
		if finalKeys[e.Key()] {
			out = append(out, e)
		}
	}
	return out
}
