package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/bridge"
	"github.com/josephgoksu/Wayline/internal/gaps"
	"github.com/josephgoksu/Wayline/internal/reasoning"
	"github.com/josephgoksu/Wayline/internal/reflection"
	"github.com/josephgoksu/Wayline/internal/task"
)

func plain(t *testing.T) {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestRenderTasks(t *testing.T) {
	plain(t)
	assert.Contains(t, RenderTasks(nil), "No tasks yet")

	out := RenderTasks([]task.Task{
		{ID: "t1", Text: "Define launch goals", EstimatedEffort: 2, CognitionLevel: task.CognitionHigh, Source: task.SourceManual},
		{ID: "t2", Text: "Old idea nobody wants", EstimatedEffort: 1, Archived: true, Source: task.SourceManual},
	})
	assert.Contains(t, out, "Define launch goals")
	assert.Contains(t, out, "2.0h")
	assert.Contains(t, out, "(archived)")
}

func TestRenderPlan(t *testing.T) {
	plain(t)
	names := Names{"a": "Define goals", "b": "Design mockups", "c": "Write copy"}
	out := RenderPlan(app.StartResult{
		SessionID:        "sess-1234567890",
		Status:           reasoning.StatusCompleted,
		Plan:             []string{"a", "b", "c"},
		Waves:            [][]string{{"a"}, {"b", "c"}},
		ConfidenceScores: map[string]float64{"a": 0.9},
		Coverage:         0.75,
		Degraded:         true,
		Warnings:         []string{"task set truncated"},
	}, names)

	assert.True(t, strings.Index(out, "Define goals") < strings.Index(out, "Design mockups"))
	assert.Contains(t, out, "90%")
	assert.Contains(t, out, "Waves")
	assert.Contains(t, out, "Design mockups | Write copy")
	assert.Contains(t, out, "coverage 75%")
	assert.Contains(t, out, "without AI assistance")
	assert.Contains(t, out, "! task set truncated")
}

func TestRenderGaps(t *testing.T) {
	plain(t)
	names := Names{"g": "Define goals", "l": "Launch"}
	res := app.GapsResult{
		AnalysisID: "an-1",
		Gaps: []bridge.GapResult{{
			Gap: gaps.Gap{PredecessorID: "g", SuccessorID: "l", Type: gaps.TypePhaseJump, Confidence: 0.8},
		}},
		Candidates: []bridge.Candidate{
			{ID: "c-struct", Lane: bridge.LaneStructural, Text: "Build the release", GapIndex: 0, EstimatedEffort: 8},
			{ID: "c-sem", Lane: bridge.LaneSemantic, Text: "Plan marketing", GapIndex: -1},
		},
		Dropped: 2,
	}
	out := RenderGaps(res, names)
	assert.Contains(t, out, "Define goals → Launch")
	assert.Contains(t, out, "phase_jump, 80%")
	assert.Contains(t, out, "Build the release")
	assert.Contains(t, out, "Missing from the goal")
	assert.Contains(t, out, "2 duplicate candidates dropped")
	assert.Contains(t, out, "wayline accept an-1")

	empty := RenderGaps(app.GapsResult{Message: "No gaps found"}, names)
	assert.Contains(t, empty, "No gaps found")
	assert.NotContains(t, empty, "wayline accept")
}

func TestRenderEffects_BlockedFirst(t *testing.T) {
	plain(t)
	names := Names{"a": "Sign contract", "b": "Hire designer"}
	out := RenderEffects([]reflection.Effect{
		{TaskID: "b", Effect: reflection.KindBoosted, Magnitude: 1.2},
		{TaskID: "a", Effect: reflection.KindBlocked, Magnitude: 0, Reason: "legal review pending"},
	}, names)
	assert.True(t, strings.Index(out, "Sign contract") < strings.Index(out, "Hire designer"))
	assert.Contains(t, out, "legal review pending")
	assert.Contains(t, RenderEffects(nil, names), "No task is affected")
}

func TestRenderReflections(t *testing.T) {
	plain(t)
	assert.Contains(t, RenderReflections(app.ReflectionList{}), "No reflections yet")

	out := RenderReflections(app.ReflectionList{Reflections: []app.ReflectionView{{
		Reflection: reflection.Reflection{ID: "r1", Text: "Legal must sign off", Active: true},
		Intent:     &reflection.Intent{Type: reflection.TypeConstraint, Strength: reflection.StrengthHard},
	}}})
	assert.Contains(t, out, "constraint/hard")
	assert.Contains(t, out, "yes")
}

func TestRenderSession(t *testing.T) {
	plain(t)
	sess := &reasoning.Session{
		ID:     "sess-1",
		Goal:   "Ship the beta",
		Status: reasoning.StatusCompleted,
		Plan:   &reasoning.Plan{Order: []string{"a"}, Waves: [][]string{{"a"}}},
		Trace: []reasoning.Step{
			{Number: 1, Tool: reasoning.ToolGraphQuery, Status: reasoning.StepCompleted, DurationMS: 3},
			{Number: 2, Tool: reasoning.ToolGapScan, Status: reasoning.StepFailed, Error: "boom"},
		},
	}
	out := RenderSession(sess, Names{"a": "Write the brief"})
	assert.Contains(t, out, "Goal: Ship the beta")
	assert.Contains(t, out, "Write the brief")
	assert.Contains(t, out, "graph_query")
	assert.Contains(t, out, "boom")
}
