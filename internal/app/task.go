package app

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/Wayline/internal/knowledge"
	"github.com/josephgoksu/Wayline/internal/memory"
	"github.com/josephgoksu/Wayline/internal/metrics"
	"github.com/josephgoksu/Wayline/internal/task"
)

// CreateTaskInput is the request to add a task.
type CreateTaskInput struct {
	Text            string              `json:"text" validate:"required"`
	EstimatedEffort float64             `json:"estimated_effort" validate:"required"`
	CognitionLevel  task.CognitionLevel `json:"cognition_level"`
	DependsOn       []string            `json:"depends_on"`
}

// LinkInput is the request to add an edge between two tasks.
type LinkInput struct {
	FromID       string            `json:"from_id" validate:"required"`
	ToID         string            `json:"to_id" validate:"required"`
	Relationship task.Relationship `json:"relationship"`
}

// TaskList is the listing response.
type TaskList struct {
	Tasks []task.Task `json:"tasks"`
	Edges []task.Edge `json:"edges"`
}

// TaskApp provides task graph, goal and document operations.
// This is THE implementation - CLI, HTTP and MCP all call these methods.
type TaskApp struct {
	ctx *Context
}

// NewTaskApp creates a new task application service.
func NewTaskApp(ctx *Context) *TaskApp {
	return &TaskApp{ctx: ctx}
}

// Create adds a manual task, optionally depending on existing tasks.
// The new edges pass the same acyclicity check as candidate acceptance.
func (a *TaskApp) Create(userID string, in CreateTaskInput) (*task.Task, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	t := task.Task{
		ID:              task.NewID(),
		UserID:          userID,
		Text:            in.Text,
		EstimatedEffort: in.EstimatedEffort,
		CognitionLevel:  in.CognitionLevel,
		Source:          task.SourceManual,
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, err
	}

	plan, err := a.ctx.Store.MutateGraph(userID, func(existing []task.Task, edges []task.Edge) (*task.MergePlan, error) {
		known := task.Index(existing)
		var add []task.Edge
		for _, dep := range in.DependsOn {
			p, ok := known[dep]
			if !ok || p.Archived {
				return nil, fmt.Errorf("%w: depends_on %s is not an active task", task.ErrInvalidTask, dep)
			}
			add = append(add, task.DependsOn(t.ID, dep, 1))
		}
		plan, err := task.PlanLink(append(existing, t), edges, add)
		if err != nil {
			return nil, err
		}
		plan.NewTasks = []task.Task{t}
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return &plan.NewTasks[0], nil
}

// List returns the user's tasks and edges. Archived tasks are left out
// unless includeArchived is set.
func (a *TaskApp) List(userID string, includeArchived bool) (*TaskList, error) {
	tasks, edges, err := a.graph(userID)
	if err != nil {
		return nil, err
	}
	if !includeArchived {
		tasks = task.Active(tasks)
	}
	return &TaskList{Tasks: tasks, Edges: edges}, nil
}

// Get returns one of the user's tasks.
func (a *TaskApp) Get(userID, id string) (*task.Task, error) {
	t, err := a.ctx.Store.GetTask(id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, fmt.Errorf("task %s: %w", id, memory.ErrNotFound)
	}
	return t, nil
}

// Archive hides a task from planning. The row is kept.
func (a *TaskApp) Archive(userID, id string) error {
	return a.ctx.Store.ArchiveTask(userID, id)
}

// Link adds an edge after proving the graph stays acyclic.
func (a *TaskApp) Link(userID string, in LinkInput) (*task.MergePlan, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if in.Relationship == "" {
		in.Relationship = task.RelPrerequisite
	}
	e := task.Edge{
		FromID:          in.FromID,
		ToID:            in.ToID,
		Relationship:    in.Relationship,
		Confidence:      1,
		DetectionMethod: task.DetectionStored,
	}
	plan, err := a.ctx.Store.MutateGraph(userID, func(existing []task.Task, edges []task.Edge) (*task.MergePlan, error) {
		for _, id := range []string{in.FromID, in.ToID} {
			if t, ok := task.Index(existing)[id]; ok && t.Archived {
				return nil, fmt.Errorf("%w: task %s is archived", task.ErrInvalidTask, id)
			}
		}
		return task.PlanLink(existing, edges, []task.Edge{e})
	})
	if err != nil {
		metrics.GraphMutations.WithLabelValues(mutationResult(err)).Inc()
		return nil, err
	}
	metrics.GraphMutations.WithLabelValues("committed").Inc()
	return plan, nil
}

// SetGoal replaces the user's active goal.
func (a *TaskApp) SetGoal(userID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: goal text is empty", ErrInvalidRequest)
	}
	return a.ctx.Store.SetGoal(userID, text)
}

// Goal returns the active goal, or memory.ErrNotFound.
func (a *TaskApp) Goal(userID string) (string, error) {
	return a.ctx.Store.GetGoal(userID)
}

// AddDocument stores reference text for context retrieval.
func (a *TaskApp) AddDocument(userID, title, body string) (*knowledge.Document, error) {
	title, body = strings.TrimSpace(title), strings.TrimSpace(body)
	if title == "" || body == "" {
		return nil, fmt.Errorf("%w: document needs a title and a body", ErrInvalidRequest)
	}
	d := &knowledge.Document{UserID: userID, Title: title, Body: body}
	if err := a.ctx.Store.AddDocument(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Documents lists the user's documents.
func (a *TaskApp) Documents(userID string) ([]knowledge.Document, error) {
	return a.ctx.Store.ListDocuments(userID)
}

func (a *TaskApp) graph(userID string) ([]task.Task, []task.Edge, error) {
	tasks, err := a.ctx.Store.ListTasks(userID)
	if err != nil {
		return nil, nil, err
	}
	edges, err := a.ctx.Store.ListEdges(userID)
	if err != nil {
		return nil, nil, err
	}
	return tasks, edges, nil
}

// mutationResult labels a rejected merge for metrics.
func mutationResult(err error) string {
	switch Kind(err) {
	case KindInvariant:
		return "cycle"
	case KindValidation:
		return "invalid"
	default:
		return "error"
	}
}
