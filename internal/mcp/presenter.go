package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/bridge"
	"github.com/josephgoksu/Wayline/internal/reflection"
)

// Markdown formatting for tool responses. The CLI has its own styled
// rendering in internal/ui.

func label(names map[string]string, id string) string {
	if text, ok := names[id]; ok {
		return fmt.Sprintf("%s (`%s`)", text, id)
	}
	return "`" + id + "`"
}

// FormatStart renders a reasoning result.
func FormatStart(res *app.StartResult, names map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Session `%s`: %s\n\n", res.SessionID, res.Status)
	if res.Error != "" {
		fmt.Fprintf(&sb, "**Error**: %s\n\n", res.Error)
	}
	if len(res.Plan) > 0 {
		sb.WriteString("### Plan\n")
		for i, id := range res.Plan {
			fmt.Fprintf(&sb, "%d. %s", i+1, label(names, id))
			if c, ok := res.ConfidenceScores[id]; ok {
				fmt.Fprintf(&sb, " [%.2f]", c)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if len(res.Waves) > 0 {
		sb.WriteString("### Waves\n")
		for i, wave := range res.Waves {
			fmt.Fprintf(&sb, "- %d: `%s`\n", i+1, strings.Join(wave, "`, `"))
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Coverage %.2f, %d steps, %d ms.\n", res.Coverage, res.TraceSummary.Steps, res.TraceSummary.DurationMS)
	sb.WriteString(formatWarnings(res.Degraded, res.Warnings))
	return strings.TrimSpace(sb.String())
}

// FormatGaps renders a gap analysis with candidate ids to accept.
func FormatGaps(res *app.GapsResult, names map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Analysis `%s`\n\n", res.AnalysisID)
	if res.Message != "" {
		sb.WriteString(res.Message + "\n")
		sb.WriteString(formatWarnings(res.Degraded, res.Warnings))
		return strings.TrimSpace(sb.String())
	}
	for i, g := range res.Gaps {
		fmt.Fprintf(&sb, "### Gap %d: %s → %s\n", i+1, label(names, g.Gap.PredecessorID), label(names, g.Gap.SuccessorID))
		fmt.Fprintf(&sb, "Type %s, confidence %.2f.\n", g.Gap.Type, g.Gap.Confidence)
		if g.Error != "" {
			fmt.Fprintf(&sb, "Generation failed: %s\n", g.Error)
		}
		sb.WriteString("\n")
	}
	if len(res.Candidates) > 0 {
		sb.WriteString("### Candidates\n")
		for _, c := range res.Candidates {
			sb.WriteString(formatCandidate(c))
		}
		sb.WriteString("\nCall `accept_candidates` with this analysis_id and the chosen ids.\n")
	}
	if res.Dropped > 0 {
		fmt.Fprintf(&sb, "%d duplicates dropped.\n", res.Dropped)
	}
	sb.WriteString(formatWarnings(res.Degraded, res.Warnings))
	return strings.TrimSpace(sb.String())
}

func formatCandidate(c bridge.Candidate) string {
	where := "goal coverage"
	if c.Lane == bridge.LaneStructural {
		where = fmt.Sprintf("gap %d", c.GapIndex+1)
	}
	return fmt.Sprintf("- `%s` **%s** (%s, %.1fh, %s): %s\n",
		c.ID, c.Text, where, c.EstimatedEffort, c.CognitionLevel, c.Reasoning)
}

// FormatAccept renders an accepted insertion.
func FormatAccept(res *app.AcceptResult, names map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Inserted %d tasks\n\n", len(res.InsertedIDs))
	for _, id := range res.InsertedIDs {
		fmt.Fprintf(&sb, "- %s\n", label(names, id))
	}
	sb.WriteString("\n### Order\n")
	for i, id := range res.Order {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, label(names, id))
	}
	sb.WriteString(formatWarnings(false, res.Warnings))
	return strings.TrimSpace(sb.String())
}

// FormatReflection renders a submitted reflection and its effects.
func FormatReflection(res *app.SubmitReflectionResult, names map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Reflection `%s`\n\n", res.Reflection.ID)
	if res.Intent != nil {
		fmt.Fprintf(&sb, "Intent: %s/%s, %s. %s\n\n", res.Intent.Type, res.Intent.Subtype, res.Intent.Strength, res.Intent.Summary)
	}
	sb.WriteString(formatOutcome(res.Outcome, names))
	return strings.TrimSpace(sb.String())
}

// FormatToggle renders a toggle outcome.
func FormatToggle(res *app.ToggleReflectionResult, names map[string]string) string {
	state := "deactivated"
	if res.Active {
		state = "activated"
	}
	return strings.TrimSpace(fmt.Sprintf("## Reflection `%s` %s\n\n%s", res.ReflectionID, state, formatOutcome(res.Outcome, names)))
}

func formatOutcome(out reflection.Outcome, names map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### Effects (%s)\n", out.CalculationMethod)
	if len(out.Effects) == 0 {
		sb.WriteString("No task is affected.\n")
	}
	for _, e := range out.Effects {
		fmt.Fprintf(&sb, "- %s: %s x%.2f", label(names, e.TaskID), e.Effect, e.Magnitude)
		if e.Reason != "" {
			sb.WriteString(" (" + e.Reason + ")")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(formatWarnings(out.Degraded, out.Warnings))
	return sb.String()
}

// FormatTasks renders the task graph.
func FormatTasks(list *app.TaskList) string {
	if len(list.Tasks) == 0 {
		return "No tasks."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Tasks (%d)\n", len(list.Tasks))
	for _, t := range list.Tasks {
		fmt.Fprintf(&sb, "- `%s` %s (%.1fh, %s)", t.ID, t.Text, t.EstimatedEffort, t.CognitionLevel)
		if t.Archived {
			sb.WriteString(" [archived]")
		}
		sb.WriteString("\n")
	}
	if len(list.Edges) > 0 {
		sb.WriteString("\n## Edges\n")
		for _, e := range list.Edges {
			fmt.Fprintf(&sb, "- `%s` %s `%s`\n", e.FromID, e.Relationship, e.ToID)
		}
	}
	return strings.TrimSpace(sb.String())
}

// FormatJSON renders v as an indented JSON block under a heading.
func FormatJSON(title string, v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("## %s\n\n(unrenderable: %v)", title, err)
	}
	return fmt.Sprintf("## %s\n\n```json\n%s\n```", title, data)
}

// FormatError renders a failure. The first line carries the error code so
// agents can branch on it.
func FormatError(body app.ErrorBody) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", body.Code, body.Message)
	if len(body.Nodes) > 0 {
		fmt.Fprintf(&sb, "\n\nTasks in the cycle: `%s`", strings.Join(body.Nodes, "`, `"))
	}
	for _, v := range body.Violations {
		sb.WriteString("\n- " + v)
	}
	return sb.String()
}

func formatWarnings(degraded bool, warnings []string) string {
	var sb strings.Builder
	if degraded {
		sb.WriteString("\n**Degraded**: some steps ran without the AI services.\n")
	}
	for _, w := range warnings {
		sb.WriteString("> " + w + "\n")
	}
	return sb.String()
}
