package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/bridge"
	"github.com/josephgoksu/Wayline/internal/reasoning"
	"github.com/josephgoksu/Wayline/internal/reflection"
	"github.com/josephgoksu/Wayline/internal/task"
)

// Names maps task ids to their text for display.
type Names map[string]string

// NamesOf indexes tasks by id.
func NamesOf(tasks []task.Task) Names {
	n := make(Names, len(tasks))
	for _, t := range tasks {
		n[t.ID] = t.Text
	}
	return n
}

func (n Names) label(id string) string {
	if text, ok := n[id]; ok {
		return Truncate(text, 60)
	}
	return id
}

// RenderTasks lists tasks with effort, cognition level and source.
func RenderTasks(tasks []task.Task) string {
	if len(tasks) == 0 {
		return StyleSubtle.Render("No tasks yet. Add one with `wayline task add`.") + "\n"
	}
	t := &Table{Headers: []string{"ID", "Task", "Effort", "Level", "Source"}, MaxWidth: 60}
	for _, tk := range tasks {
		text := tk.Text
		if tk.Archived {
			text += " (archived)"
		}
		t.Rows = append(t.Rows, []string{
			ShortID(tk.ID),
			text,
			fmt.Sprintf("%.1fh", tk.EstimatedEffort),
			string(tk.CognitionLevel),
			string(tk.Source),
		})
	}
	return t.Render()
}

// RenderPlan prints the ordered plan, its parallel waves and the run summary.
func RenderPlan(res app.StartResult, names Names) string {
	var sb strings.Builder
	sb.WriteString(StyleSectionTitle.Render("Plan") + "\n")
	if len(res.Plan) == 0 {
		sb.WriteString(StyleSubtle.Render("  (no plan)") + "\n")
	}
	for i, id := range res.Plan {
		conf := ""
		if c, ok := res.ConfidenceScores[id]; ok {
			conf = StyleSubtle.Render(fmt.Sprintf("  %.0f%%", c*100))
		}
		fmt.Fprintf(&sb, "  %2d. %s%s\n", i+1, names.label(id), conf)
	}

	if len(res.Waves) > 1 {
		sb.WriteString("\n" + StyleSectionTitle.Render("Waves") + "\n")
		for i, wave := range res.Waves {
			labels := make([]string, len(wave))
			for j, id := range wave {
				labels[j] = names.label(id)
			}
			fmt.Fprintf(&sb, "  %d: %s\n", i+1, strings.Join(labels, StyleSubtle.Render(" | ")))
		}
	}

	status := StyleSuccess.Render(string(res.Status))
	if res.Error != "" {
		status = StyleError.Render(string(res.Status) + ": " + res.Error)
	}
	fmt.Fprintf(&sb, "\n%s  session %s  coverage %.0f%%  steps %d  %dms\n",
		status, ShortID(res.SessionID), res.Coverage*100, res.TraceSummary.Steps, res.TraceSummary.DurationMS)
	sb.WriteString(renderWarnings(res.Degraded, res.Warnings))
	return sb.String()
}

// RenderSession prints a stored session with its full trace.
func RenderSession(sess *reasoning.Session, names Names) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", StyleTitle.Render("Session "+sess.ID), StyleSubtle.Render(string(sess.Status)))
	fmt.Fprintf(&sb, "Goal: %s\n\n", sess.Goal)

	res := app.StartResult{
		SessionID: sess.ID,
		Status:    sess.Status,
		Coverage:  sess.Metadata.Coverage,
		Degraded:  sess.Metadata.Degraded,
		Warnings:  sess.Metadata.Warnings,
		Error:     sess.Error,
		TraceSummary: sess.Summary(),
	}
	if sess.Plan != nil {
		res.Plan = sess.Plan.Order
		res.Waves = sess.Plan.Waves
		res.ConfidenceScores = sess.Plan.Confidence
	}
	sb.WriteString(RenderPlan(res, names))

	sb.WriteString("\n" + StyleSectionTitle.Render("Trace") + "\n")
	for _, step := range sess.Trace {
		tool := string(step.Tool)
		if tool == "" {
			tool = "synthesis"
		}
		line := fmt.Sprintf("  %2d. %-18s %-9s %5dms", step.Number, tool, step.Status, step.DurationMS)
		if step.Error != "" {
			line += " " + StyleError.Render(step.Error)
		} else if step.Thought != "" {
			line += " " + StyleSubtle.Render(Truncate(step.Thought, 60))
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// RenderGaps prints each gap with its candidates, then the semantic lane.
func RenderGaps(res app.GapsResult, names Names) string {
	var sb strings.Builder
	if res.Message != "" {
		sb.WriteString(StyleSuccess.Render(res.Message) + "\n")
	}

	lanes := map[int][]bridge.Candidate{}
	var semantic []bridge.Candidate
	for _, c := range res.Candidates {
		if c.Lane == bridge.LaneSemantic {
			semantic = append(semantic, c)
			continue
		}
		lanes[c.GapIndex] = append(lanes[c.GapIndex], c)
	}

	for i, g := range res.Gaps {
		fmt.Fprintf(&sb, "%s %s → %s  %s\n",
			StyleSectionTitle.Render(fmt.Sprintf("Gap %d", i+1)),
			names.label(g.Gap.PredecessorID), names.label(g.Gap.SuccessorID),
			StyleSubtle.Render(fmt.Sprintf("%s, %.0f%%", g.Gap.Type, g.Gap.Confidence*100)))
		if g.Error != "" {
			sb.WriteString("  " + StyleWarning.Render("generation failed: "+g.Error) + "\n")
		}
		for _, c := range lanes[i] {
			sb.WriteString(renderCandidate(c))
		}
	}

	if len(semantic) > 0 {
		sb.WriteString(StyleLaneSemantic.Render("Missing from the goal") + "\n")
		for _, c := range semantic {
			sb.WriteString(renderCandidate(c))
		}
	}
	if res.Dropped > 0 {
		sb.WriteString(StyleSubtle.Render(fmt.Sprintf("%d duplicate candidates dropped", res.Dropped)) + "\n")
	}
	if res.AnalysisID != "" && len(res.Candidates) > 0 {
		fmt.Fprintf(&sb, "\nAccept with: wayline accept %s <candidate-id>...\n", res.AnalysisID)
	}
	sb.WriteString(renderWarnings(res.Degraded, res.Warnings))
	return sb.String()
}

func renderCandidate(c bridge.Candidate) string {
	lane := StyleLaneStructural
	if c.Lane == bridge.LaneSemantic {
		lane = StyleLaneSemantic
	}
	return fmt.Sprintf("  %s %s %s\n      %s\n",
		lane.Render(ShortID(c.ID)),
		c.Text,
		StyleSubtle.Render(fmt.Sprintf("(%.1fh, %s)", c.EstimatedEffort, c.CognitionLevel)),
		StyleSubtle.Render(Truncate(c.Reasoning, 100)))
}

// RenderEffects prints per-task reflection effects, blocked first.
func RenderEffects(effects []reflection.Effect, names Names) string {
	if len(effects) == 0 {
		return StyleSubtle.Render("No task is affected.") + "\n"
	}
	sorted := append([]reflection.Effect(nil), effects...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return effectRank(sorted[i].Effect) < effectRank(sorted[j].Effect)
	})

	var sb strings.Builder
	for _, e := range sorted {
		var mark string
		switch e.Effect {
		case reflection.KindBlocked:
			mark = StyleError.Render("blocked ")
		case reflection.KindDemoted:
			mark = StyleWarning.Render("demoted ")
		case reflection.KindBoosted:
			mark = StyleSuccess.Render("boosted ")
		default:
			mark = StyleSubtle.Render("same    ")
		}
		fmt.Fprintf(&sb, "  %s %s %s\n", mark, names.label(e.TaskID),
			StyleSubtle.Render(fmt.Sprintf("x%.2f %s", e.Magnitude, e.Reason)))
	}
	return sb.String()
}

func effectRank(k reflection.Kind) int {
	switch k {
	case reflection.KindBlocked:
		return 0
	case reflection.KindDemoted:
		return 1
	case reflection.KindBoosted:
		return 2
	default:
		return 3
	}
}

// RenderOutcome prints a reflection outcome.
func RenderOutcome(out reflection.Outcome, names Names) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", StyleSectionTitle.Render("Effects"),
		StyleSubtle.Render("("+out.CalculationMethod+")"))
	sb.WriteString(RenderEffects(out.Effects, names))
	sb.WriteString(renderWarnings(out.Degraded, out.Warnings))
	return sb.String()
}

// RenderReflections lists reflections with their classified intent.
func RenderReflections(list app.ReflectionList) string {
	if len(list.Reflections) == 0 {
		return StyleSubtle.Render("No reflections yet.") + "\n"
	}
	t := &Table{Headers: []string{"ID", "Active", "Intent", "Text"}, MaxWidth: 70}
	for _, r := range list.Reflections {
		intent := "-"
		if r.Intent != nil {
			intent = fmt.Sprintf("%s/%s", r.Intent.Type, r.Intent.Strength)
		}
		active := "no"
		if r.Active {
			active = "yes"
		}
		t.Rows = append(t.Rows, []string{ShortID(r.ID), active, intent, r.Text})
	}
	return t.Render()
}

func renderWarnings(degraded bool, warnings []string) string {
	var sb strings.Builder
	if degraded {
		sb.WriteString(StyleWarning.Render("! ran without AI assistance for some steps") + "\n")
	}
	for _, w := range warnings {
		sb.WriteString(StyleWarning.Render("! "+w) + "\n")
	}
	return sb.String()
}
