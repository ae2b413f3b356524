package mcp

import (
	"context"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/llm/llmtest"
	"github.com/josephgoksu/Wayline/internal/memory"
)

const user = "agent"

func newTestHandlers(t *testing.T) (*Handlers, *app.Context) {
	t.Helper()
	store, err := memory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	text := llmtest.NewText(func(req llm.Request) (*llm.Response, error) {
		switch req.Operation {
		case "missing_concepts":
			return &llm.Response{Content: `{"concepts": []}`}, nil
		case "bridge_gap":
			return &llm.Response{Content: `{"candidates": [{"text": "Build the production release", "estimated_effort": 4, "cognition_level": "medium", "confidence": 0.8, "reasoning": "needed before launch"}]}`}, nil
		case "classify_reflection":
			return &llm.Response{Content: `{"type": "constraint", "subtype": "blocker", "strength": "hard", "keywords": ["outreach"], "summary": "Outreach is blocked"}`}, nil
		}
		return nil, llmtest.ErrFake
	})
	cfg := app.DefaultConfig()
	cfg.Bridge.RetryDelay = 0
	cfg.Reflection.RetryDelay = 0
	appCtx := app.NewContext(store, text, llmtest.NewVectors(), cfg)
	return NewHandlers(appCtx, user), appCtx
}

func TestHandlers_ReasonDetectAccept(t *testing.T) {
	h, appCtx := newTestHandlers(t)
	tasks := app.NewTaskApp(appCtx)
	ctx := context.Background()

	res := h.StartReasoning(ctx, StartReasoningParams{})
	assert.Equal(t, "no_active_goal", res.Code)
	assert.True(t, strings.HasPrefix(res.Error, "[no_active_goal]"))

	goals, err := tasks.Create(user, app.CreateTaskInput{Text: "Define goals for the product", EstimatedEffort: 8})
	require.NoError(t, err)
	_, err = tasks.Create(user, app.CreateTaskInput{Text: "Design mockups", EstimatedEffort: 16, DependsOn: []string{goals.ID}})
	require.NoError(t, err)
	_, err = tasks.Create(user, app.CreateTaskInput{Text: "Launch app", EstimatedEffort: 24})
	require.NoError(t, err)

	res = h.StartReasoning(ctx, StartReasoningParams{GoalText: "Launch a product people want"})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "### Plan")
	assert.Contains(t, res.Content, "Define goals for the product")

	res = h.GetSession(ctx, GetSessionParams{})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "```json")

	res = h.DetectGaps(ctx, DetectGapsParams{})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "### Candidates")

	gaps, err := app.NewBridgeApp(appCtx).DetectGaps(ctx, user, currentSession(t, h))
	require.NoError(t, err)
	require.NotEmpty(t, gaps.Candidates)

	res = h.AcceptCandidates(ctx, AcceptCandidatesParams{
		AnalysisID:  gaps.AnalysisID,
		AcceptedIDs: []string{gaps.Candidates[0].ID},
	})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "## Inserted 1 tasks")

	res = h.AcceptCandidates(ctx, AcceptCandidatesParams{AnalysisID: gaps.AnalysisID})
	assert.Equal(t, "invalid_request", res.Code)
}

func TestHandlers_Reflections(t *testing.T) {
	h, appCtx := newTestHandlers(t)
	tasks := app.NewTaskApp(appCtx)
	ctx := context.Background()
	_, err := tasks.Create(user, app.CreateTaskInput{Text: "Start customer outreach campaign", EstimatedEffort: 4})
	require.NoError(t, err)

	res := h.SubmitReflection(ctx, SubmitReflectionParams{Text: "Legal blocked all customer outreach"})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "Intent: constraint/blocker, hard")

	list, err := app.NewReflectionApp(appCtx).List(user)
	require.NoError(t, err)
	require.Len(t, list.Reflections, 1)

	res = h.ToggleReflection(ctx, ToggleReflectionParams{ReflectionID: list.Reflections[0].ID, Active: false})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "deactivated")

	res = h.ToggleReflection(ctx, ToggleReflectionParams{})
	assert.Equal(t, "invalid_request", res.Code)

	res = h.ToggleReflection(ctx, ToggleReflectionParams{ReflectionID: "nope", Active: true})
	assert.Equal(t, "not_found", res.Code)
}

func TestHandlers_ListTasks(t *testing.T) {
	h, appCtx := newTestHandlers(t)
	tasks := app.NewTaskApp(appCtx)
	assert.Equal(t, "No tasks.", h.ListTasks(context.Background(), ListTasksParams{}).Content)

	a, err := tasks.Create(user, app.CreateTaskInput{Text: "Write the launch brief", EstimatedEffort: 3})
	require.NoError(t, err)
	_, err = tasks.Create(user, app.CreateTaskInput{Text: "Review the launch brief", EstimatedEffort: 1, DependsOn: []string{a.ID}})
	require.NoError(t, err)

	out := h.ListTasks(context.Background(), ListTasksParams{}).Content
	assert.Contains(t, out, "## Tasks (2)")
	assert.Contains(t, out, "prerequisite `"+a.ID+"`")
}

func TestToCallResult(t *testing.T) {
	ok := toCallResult(&ToolResult{Content: "fine"})
	assert.False(t, ok.IsError)
	require.Len(t, ok.Content, 1)
	assert.Equal(t, "fine", ok.Content[0].(*mcpsdk.TextContent).Text)

	bad := toCallResult(&ToolResult{Error: "[cycle_detected] no", Code: "cycle_detected"})
	assert.True(t, bad.IsError)
	assert.Equal(t, "[cycle_detected] no", bad.Content[0].(*mcpsdk.TextContent).Text)
}

func TestFormatError(t *testing.T) {
	out := FormatError(app.ErrorBody{Code: "cycle_detected", Message: "cycle", Nodes: []string{"a", "b"}})
	assert.True(t, strings.HasPrefix(out, "[cycle_detected] cycle"))
	assert.Contains(t, out, "`a`, `b`")

	out = FormatError(app.ErrorBody{Code: "policy_denied", Message: "denied", Violations: []string{"too many tasks"}})
	assert.Contains(t, out, "- too many tasks")
}

func TestNewServer(t *testing.T) {
	_, appCtx := newTestHandlers(t)
	assert.NotNil(t, NewServer(appCtx, user, "test"))
	assert.Len(t, ToolNames(), 7)
}

func currentSession(t *testing.T, h *Handlers) string {
	t.Helper()
	sess, err := h.reasoning.Current(user)
	require.NoError(t, err)
	return sess.ID
}
