package reflection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/josephgoksu/Wayline/internal/metrics"
	"github.com/josephgoksu/Wayline/internal/task"
)

// Store is what the adjuster reads and writes.
type Store interface {
	IntentStore
	GetReflection(id string) (*Reflection, error)
	ListReflections(userID string) ([]Reflection, error)
	SetReflectionActive(id string, active bool) error
	ListTasks(userID string) ([]task.Task, error)
	ReplaceTaskEffects(userID string, effects []Effect) error
}

// Adjuster applies reflections to the task graph.
//
// ApplyNew is the slow path and may classify. Toggle is the fast path and
// only ever reads cached intents; it holds no reference to the text
// service.
type Adjuster struct {
	store  Store
	interp *Interpreter
	floor  int
}

// NewAdjuster creates an Adjuster. A non-positive floor disables it.
func NewAdjuster(store Store, interp *Interpreter, floor int) *Adjuster {
	return &Adjuster{store: store, interp: interp, floor: floor}
}

// ApplyNew interprets the given reflections when they have no current
// intent, then recomputes effects for all active reflections. When
// taskIDs is non-empty only effects on those tasks are returned.
func (a *Adjuster) ApplyNew(ctx context.Context, userID string, reflectionIDs, taskIDs []string) (*Outcome, error) {
	start := time.Now()
	defer func() { metrics.ReflectionApply.WithLabelValues("slow").Observe(time.Since(start).Seconds()) }()

	out := &Outcome{CalculationMethod: MethodCached}
	fresh := make(map[string]*Intent, len(reflectionIDs))
	for _, id := range reflectionIDs {
		r, err := a.store.GetReflection(id)
		if err != nil {
			return nil, err
		}
		if r.UserID != userID {
			return nil, fmt.Errorf("reflection %s belongs to another user", id)
		}
		in, classified, err := a.interp.Interpret(ctx, *r)
		if err != nil {
			return nil, err
		}
		if classified {
			out.Classifications++
			out.CalculationMethod = MethodClassified
		}
		if in.Degraded {
			out.Degraded = true
			out.Warnings = append(out.Warnings, fmt.Sprintf("reflection %s could not be classified; treated as context only", id))
		}
		fresh[id] = in
	}

	effects, warnings, err := a.recompute(userID, fresh)
	if err != nil {
		return nil, err
	}
	out.Warnings = append(out.Warnings, warnings...)
	out.Effects = filterTasks(effects, taskIDs)
	return out, nil
}

// Toggle activates or deactivates a reflection and recomputes effects from
// cached intents only.
func (a *Adjuster) Toggle(ctx context.Context, userID, reflectionID string, active bool) (*Outcome, error) {
	start := time.Now()
	defer func() { metrics.ReflectionApply.WithLabelValues("fast").Observe(time.Since(start).Seconds()) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := a.store.GetReflection(reflectionID)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, fmt.Errorf("reflection %s belongs to another user", reflectionID)
	}
	if err := a.store.SetReflectionActive(reflectionID, active); err != nil {
		return nil, err
	}

	effects, warnings, err := a.recompute(userID, nil)
	if err != nil {
		return nil, err
	}
	return &Outcome{Effects: effects, CalculationMethod: MethodCached, Warnings: warnings}, nil
}

// recompute gathers intents of active reflections, preferring those in
// known, computes effects and persists them as the user's current set.
func (a *Adjuster) recompute(userID string, known map[string]*Intent) ([]Effect, []string, error) {
	refls, err := a.store.ListReflections(userID)
	if err != nil {
		return nil, nil, err
	}
	var warnings []string
	var intents []*Intent
	for _, r := range refls {
		if !r.Active {
			continue
		}
		if in, ok := known[r.ID]; ok {
			intents = append(intents, in)
			continue
		}
		in, err := a.store.LookupIntent(r.ID)
		if err != nil {
			return nil, nil, err
		}
		if in == nil {
			slog.Error("active reflection has no cached intent", "invariant", "toggle_cache_miss", "reflection_id", r.ID)
			warnings = append(warnings, fmt.Sprintf("reflection %s has no classification yet and was skipped", r.ID))
			continue
		}
		intents = append(intents, in)
	}

	tasks, err := a.store.ListTasks(userID)
	if err != nil {
		return nil, nil, err
	}
	effects, floorWarnings := Compute(intents, tasks, a.floor)
	if err := a.store.ReplaceTaskEffects(userID, effects); err != nil {
		return nil, nil, err
	}
	return effects, append(warnings, floorWarnings...), nil
}

func filterTasks(effects []Effect, taskIDs []string) []Effect {
	if len(taskIDs) == 0 {
		return effects
	}
	want := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	var out []Effect
	for _, e := range effects {
		if want[e.TaskID] {
			out = append(out, e)
		}
	}
	return out
}
