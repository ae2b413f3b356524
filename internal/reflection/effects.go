package reflection

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/josephgoksu/Wayline/internal/task"
	"github.com/josephgoksu/Wayline/internal/utils"
)

// DefaultBlockFloor is the minimum number of tasks that stay unblocked.
const DefaultBlockFloor = 5

// effectOf maps an intent to the effect it has on matched tasks.
func effectOf(in *Intent) (Kind, float64) {
	hard := in.Strength == StrengthHard
	switch in.Subtype {
	case SubtypeBlocker:
		if hard {
			return KindBlocked, 1.0
		}
		return KindDemoted, 0.6
	case SubtypeSoftBlock:
		if hard {
			return KindDemoted, 0.6
		}
		return KindDemoted, 0.4
	case SubtypeBoost:
		if hard {
			return KindBoosted, 0.6
		}
		return KindBoosted, 0.4
	case SubtypeEnergyLevel:
		if in.Polarity == PolarityPositive {
			return KindBoosted, 0.3
		}
		return KindDemoted, 0.3
	case SubtypeDependency:
		return KindBoosted, 0.3
	default:
		return KindUnchanged, 0
	}
}

// Match returns the tasks an intent touches. Capacity intents touch
// high-cognition work; every other intent touches tasks whose text
// contains one of its keywords as a phrase.
func Match(in *Intent, tasks []task.Task) []task.Task {
	if in.Subtype == SubtypeEnergyLevel {
		var out []task.Task
		for _, t := range tasks {
			if t.CognitionLevel == task.CognitionHigh {
				out = append(out, t)
			}
		}
		return out
	}

	phrases := make([][]string, 0, len(in.Keywords))
	for _, k := range in.Keywords {
		if toks := utils.Tokenize(k); len(toks) > 0 {
			phrases = append(phrases, toks)
		}
	}
	if len(phrases) == 0 {
		return nil
	}
	var out []task.Task
	for _, t := range tasks {
		toks := utils.Tokenize(t.Text)
		for _, p := range phrases {
			if utils.ContainsPhrase(toks, p) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Compute derives the resolved effect per task from a set of intents.
// It is pure: no store and no text service. When several intents touch a
// task the strongest wins (hard block, soft block, boost); ties go to the
// larger magnitude, then the lower reflection id. The block floor is
// applied last. Results are ordered by task id.
func Compute(intents []*Intent, tasks []task.Task, floor int) ([]Effect, []string) {
	active := task.Active(tasks)
	sorted := append([]*Intent{}, intents...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ReflectionID < sorted[j].ReflectionID })

	best := map[string]Effect{}
	for _, in := range sorted {
		kind, mag := effectOf(in)
		if kind == KindUnchanged {
			continue
		}
		reason := fmt.Sprintf("%s/%s: %s", in.Type, in.Subtype, in.Summary)
		for _, t := range Match(in, active) {
			e := Effect{ReflectionID: in.ReflectionID, TaskID: t.ID, Effect: kind, Magnitude: mag, Reason: reason}
			cur, ok := best[t.ID]
			if !ok || stronger(e, cur) {
				best[t.ID] = e
			}
		}
	}

	effects := make([]Effect, 0, len(best))
	for _, e := range best {
		effects = append(effects, e)
	}
	sort.Slice(effects, func(i, j int) bool { return effects[i].TaskID < effects[j].TaskID })

	warnings := enforceFloor(effects, len(active), floor)
	return effects, warnings
}

func stronger(a, b Effect) bool {
	if a.Effect.rank() != b.Effect.rank() {
		return a.Effect.rank() > b.Effect.rank()
	}
	if a.Magnitude != b.Magnitude {
		return a.Magnitude > b.Magnitude
	}
	return a.ReflectionID < b.ReflectionID
}

// enforceFloor downgrades blocks, in task id order, until at least floor
// active tasks remain unblocked or no blocks are left. effects must be
// sorted by task id.
func enforceFloor(effects []Effect, activeCount, floor int) []string {
	if floor <= 0 {
		return nil
	}
	blocked := 0
	for _, e := range effects {
		if e.Effect == KindBlocked {
			blocked++
		}
	}
	excess := floor - (activeCount - blocked)
	if excess <= 0 || blocked == 0 {
		return nil
	}

	downgraded := 0
	for i := range effects {
		if downgraded == excess {
			break
		}
		if effects[i].Effect != KindBlocked {
			continue
		}
		effects[i].Effect = KindDemoted
		effects[i].Magnitude = 0.6
		effects[i].Warning = true
		effects[i].Reason += " (block relaxed to keep enough tasks available)"
		downgraded++
	}
	slog.Warn("block floor reached, blocks downgraded", "invariant", "block_floor", "floor", floor, "downgraded", downgraded)
	return []string{fmt.Sprintf("%d blocked task(s) downgraded to keep at least %d tasks available", downgraded, floor)}
}
