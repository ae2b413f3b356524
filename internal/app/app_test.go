package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/Wayline/internal/bridge"
	"github.com/josephgoksu/Wayline/internal/gaps"
	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/llm/llmtest"
	"github.com/josephgoksu/Wayline/internal/memory"
	"github.com/josephgoksu/Wayline/internal/policy"
	"github.com/josephgoksu/Wayline/internal/reasoning"
	"github.com/josephgoksu/Wayline/internal/reflection"
	"github.com/josephgoksu/Wayline/internal/task"
)

const (
	user = "u1"

	bridgeProposals = `{"candidates": [
		{"text": "Build the production release", "estimated_effort": 4, "cognition_level": "medium", "confidence": 0.8, "reasoning": "turns the designs into something shippable"},
		{"text": "Run acceptance testing with beta users", "estimated_effort": 6, "cognition_level": "medium", "confidence": 0.7, "reasoning": "checks the build before launch"}
	]}`

	legalBlocker = `{"type": "constraint", "subtype": "blocker", "strength": "hard", "keywords": ["customer outreach"], "summary": "Legal blocked outreach to customers"}`
)

// scriptedText answers each operation the way a well-behaved model would.
func scriptedText() *llmtest.Text {
	return llmtest.NewText(func(req llm.Request) (*llm.Response, error) {
		switch req.Operation {
		case "missing_concepts":
			return &llm.Response{Content: `{"concepts": []}`}, nil
		case "bridge_gap":
			return &llm.Response{Content: bridgeProposals}, nil
		case "classify_reflection":
			return &llm.Response{Content: legalBlocker}, nil
		}
		return nil, llmtest.ErrFake
	})
}

func newTestContext(t *testing.T, text llm.TextService) *Context {
	t.Helper()
	store, err := memory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := DefaultConfig()
	cfg.Bridge.RetryDelay = 0
	cfg.Reflection.RetryDelay = 0
	return NewContext(store, text, llmtest.NewVectors(), cfg)
}

func mustCreate(t *testing.T, tasks *TaskApp, text string, effort float64, deps ...string) *task.Task {
	t.Helper()
	created, err := tasks.Create(user, CreateTaskInput{Text: text, EstimatedEffort: effort, DependsOn: deps})
	require.NoError(t, err)
	return created
}

func position(order []string, id string) int {
	for i, x := range order {
		if x == id {
			return i
		}
	}
	return -1
}

func TestTaskApp_CreateListArchive(t *testing.T) {
	tasks := NewTaskApp(newTestContext(t, nil))

	goals := mustCreate(t, tasks, "Define goals for the product", 8)
	mock := mustCreate(t, tasks, "Design mockups", 16, goals.ID)
	assert.True(t, mock.IsManual)
	assert.Equal(t, task.CognitionMedium, mock.CognitionLevel)

	list, err := tasks.List(user, false)
	require.NoError(t, err)
	assert.Len(t, list.Tasks, 2)
	require.Len(t, list.Edges, 1)
	assert.Equal(t, mock.ID, list.Edges[0].FromID)
	assert.Equal(t, goals.ID, list.Edges[0].ToID)

	require.NoError(t, tasks.Archive(user, goals.ID))
	list, err = tasks.List(user, false)
	require.NoError(t, err)
	assert.Len(t, list.Tasks, 1)

	list, err = tasks.List(user, true)
	require.NoError(t, err)
	assert.Len(t, list.Tasks, 2, "archived rows are kept")

	_, err = tasks.Create(user, CreateTaskInput{Text: "Depends on archived", EstimatedEffort: 2, DependsOn: []string{goals.ID}})
	assert.Equal(t, KindValidation, Kind(err))

	_, err = tasks.Get("someone-else", mock.ID)
	assert.Equal(t, KindNotFound, Kind(err))
}

func TestTaskApp_CreateValidates(t *testing.T) {
	tasks := NewTaskApp(newTestContext(t, nil))

	_, err := tasks.Create(user, CreateTaskInput{Text: "ok", EstimatedEffort: 2})
	assert.Equal(t, KindValidation, Kind(err))

	_, err = tasks.Create(user, CreateTaskInput{Text: "Plan the roadmap", EstimatedEffort: 500})
	assert.True(t, errors.Is(err, task.ErrInvalidTask))

	_, err = tasks.Create(user, CreateTaskInput{Text: "Plan the roadmap"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestTaskApp_LinkRejectsCycle(t *testing.T) {
	tasks := NewTaskApp(newTestContext(t, nil))
	a := mustCreate(t, tasks, "Write the launch brief", 3)
	b := mustCreate(t, tasks, "Review the launch brief", 1, a.ID)

	_, err := tasks.Link(user, LinkInput{FromID: a.ID, ToID: b.ID})
	require.Error(t, err)
	assert.Equal(t, KindInvariant, Kind(err))
	body := Describe(err)
	assert.Equal(t, "cycle_detected", body.Code)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, body.Nodes)

	list, err := tasks.List(user, false)
	require.NoError(t, err)
	assert.Len(t, list.Edges, 1, "rejected link writes nothing")

	c := mustCreate(t, tasks, "Publish the launch brief", 1)
	plan, err := tasks.Link(user, LinkInput{FromID: c.ID, ToID: b.ID})
	require.NoError(t, err)
	assert.Less(t, position(plan.Order, b.ID), position(plan.Order, c.ID))
}

func TestTaskApp_OppositeLinksNeverCommitCycle(t *testing.T) {
	tasks := NewTaskApp(newTestContext(t, nil))

	for i := 0; i < 10; i++ {
		a := mustCreate(t, tasks, fmt.Sprintf("Draft section %d of the brief", i), 2)
		b := mustCreate(t, tasks, fmt.Sprintf("Review section %d of the brief", i), 1)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, in := range []LinkInput{{FromID: a.ID, ToID: b.ID}, {FromID: b.ID, ToID: a.ID}} {
			wg.Add(1)
			go func(j int, in LinkInput) {
				defer wg.Done()
				_, errs[j] = tasks.Link(user, in)
			}(j, in)
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				failed++
				assert.Equal(t, KindInvariant, Kind(err))
			}
		}
		assert.Equal(t, 1, failed, "exactly one of two opposite links commits")
	}

	list, err := tasks.List(user, true)
	require.NoError(t, err)
	assert.Len(t, list.Edges, 10)
	_, err = task.TopologicalSort(list.Tasks, list.Edges)
	assert.NoError(t, err)
}

func TestTaskApp_GoalsAndDocuments(t *testing.T) {
	tasks := NewTaskApp(newTestContext(t, nil))

	_, err := tasks.Goal(user)
	assert.Equal(t, KindNotFound, Kind(err))
	assert.Equal(t, KindValidation, Kind(tasks.SetGoal(user, "  ")))

	require.NoError(t, tasks.SetGoal(user, "Launch the mobile app"))
	goal, err := tasks.Goal(user)
	require.NoError(t, err)
	assert.Equal(t, "Launch the mobile app", goal)

	doc, err := tasks.AddDocument(user, "Launch checklist", "Store listing, screenshots and a press kit are needed before launch.")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	docs, err := tasks.Documents(user)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, err = tasks.AddDocument(user, "", "body")
	assert.Equal(t, KindValidation, Kind(err))
}

func TestReasoningApp_StartRequiresGoal(t *testing.T) {
	ctx := newTestContext(t, nil)
	mustCreate(t, NewTaskApp(ctx), "Design mockups", 16)

	_, err := NewReasoningApp(ctx).Start(context.Background(), user, StartRequest{})
	assert.ErrorIs(t, err, ErrNoActiveGoal)
	assert.Equal(t, "no_active_goal", Describe(err).Code)
}

func TestReasoningApp_StartUsesStoredGoalAndReplacesSession(t *testing.T) {
	ctx := newTestContext(t, scriptedText())
	tasks := NewTaskApp(ctx)
	goals := mustCreate(t, tasks, "Define goals for the product", 8)
	mock := mustCreate(t, tasks, "Design mockups", 16, goals.ID)
	launch := mustCreate(t, tasks, "Launch app", 24)
	require.NoError(t, tasks.SetGoal(user, "Define goals for the product. Design mockups. Launch app"))

	reasoner := NewReasoningApp(ctx)
	first, err := reasoner.Start(context.Background(), user, StartRequest{})
	require.NoError(t, err)
	assert.Equal(t, reasoning.StatusCompleted, first.Status)
	assert.ElementsMatch(t, []string{goals.ID, mock.ID, launch.ID}, first.Plan)
	assert.Less(t, position(first.Plan, goals.ID), position(first.Plan, mock.ID))
	assert.LessOrEqual(t, first.TraceSummary.Steps, reasoning.MaxSteps)
	assert.Len(t, first.ConfidenceScores, 3)

	sess, err := reasoner.Session(user, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Define goals for the product. Design mockups. Launch app", sess.Goal)

	second, err := reasoner.Start(context.Background(), user, StartRequest{GoalText: "Ship it", TaskIDs: []string{mock.ID, launch.ID}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{mock.ID, launch.ID}, second.Plan)

	_, err = reasoner.Session(user, first.SessionID)
	assert.Equal(t, KindNotFound, Kind(err), "a new session supersedes the old one")
	current, err := reasoner.Current(user)
	require.NoError(t, err)
	assert.Equal(t, second.SessionID, current.ID)

	_, err = reasoner.Session("intruder", second.SessionID)
	assert.Equal(t, KindNotFound, Kind(err))
}

func TestReasoningApp_TaskCap(t *testing.T) {
	ctx := newTestContext(t, nil)
	ctx.Cfg.Reasoning.MaxTasks = 2
	tasks := NewTaskApp(ctx)
	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, mustCreate(t, tasks, fmt.Sprintf("Write chapter %d", i+1), 4).ID)
	}
	reasoner := NewReasoningApp(ctx)

	_, err := reasoner.Start(context.Background(), user, StartRequest{GoalText: "Finish the book", TaskIDs: ids})
	assert.ErrorIs(t, err, ErrTaskSetTooLarge)
	assert.Equal(t, "task_set_too_large", Describe(err).Code)

	res, err := reasoner.Start(context.Background(), user, StartRequest{GoalText: "Finish the book"})
	require.NoError(t, err)
	assert.Len(t, res.Plan, 2)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "truncated")
	assert.NotContains(t, res.Plan, ids[0], "oldest task is dropped first")
}

func TestReasoningApp_UnknownExplicitTask(t *testing.T) {
	ctx := newTestContext(t, nil)
	_, err := NewReasoningApp(ctx).Start(context.Background(), user, StartRequest{GoalText: "Anything", TaskIDs: []string{"task-missing"}})
	assert.Equal(t, KindNotFound, Kind(err))
}

// scenario stores the three-task plan with a completed session whose order
// is goals, mockups, launch.
func scenario(t *testing.T, ctx *Context) (sessionID string, ids []string) {
	t.Helper()
	tasks := NewTaskApp(ctx)
	goals := mustCreate(t, tasks, "Define goals for the product", 8)
	mock := mustCreate(t, tasks, "Design mockups", 16, goals.ID)
	launch := mustCreate(t, tasks, "Launch app", 24)
	ids = []string{goals.ID, mock.ID, launch.ID}

	sess := reasoning.NewSession(user, "Define goals for the product. Design mockups. Launch app", ids)
	sess.Status = reasoning.StatusCompleted
	sess.Plan = &reasoning.Plan{
		Order: ids,
		Waves: [][]string{{goals.ID, launch.ID}, {mock.ID}},
		Edges: []task.Edge{task.DependsOn(mock.ID, goals.ID, 1)},
	}
	require.NoError(t, ctx.Store.ReplaceSession(sess))
	return sess.ID, ids
}

func TestBridgeApp_DetectAndAccept(t *testing.T) {
	ctx := newTestContext(t, scriptedText())
	sessionID, ids := scenario(t, ctx)
	bridger := NewBridgeApp(ctx)

	res, err := bridger.DetectGaps(context.Background(), user, sessionID)
	require.NoError(t, err)
	require.Len(t, res.Gaps, 1)
	assert.Equal(t, ids[1], res.Gaps[0].Gap.PredecessorID)
	assert.Equal(t, ids[2], res.Gaps[0].Gap.SuccessorID)
	require.Len(t, res.Candidates, 2)
	for _, c := range res.Candidates {
		assert.Equal(t, bridge.LaneStructural, c.Lane)
	}
	assert.Empty(t, res.Message)

	accept := AcceptRequest{
		AnalysisID:  res.AnalysisID,
		AcceptedIDs: []string{res.Candidates[0].ID, res.Candidates[1].ID},
	}
	out, err := bridger.Accept(context.Background(), user, accept)
	require.NoError(t, err)
	assert.True(t, out.Success)
	require.Len(t, out.InsertedIDs, 2)

	order := out.Order
	assert.Less(t, position(order, ids[1]), position(order, out.InsertedIDs[0]))
	assert.Less(t, position(order, out.InsertedIDs[0]), position(order, out.InsertedIDs[1]))
	assert.Less(t, position(order, out.InsertedIDs[1]), position(order, ids[2]))

	created, err := NewTaskApp(ctx).Get(user, out.InsertedIDs[0])
	require.NoError(t, err)
	assert.Equal(t, task.SourceAIGenerated, created.Source)
	assert.Equal(t, "Build the production release", created.Text)

	_, err = bridger.Accept(context.Background(), user, accept)
	assert.Equal(t, KindNotFound, Kind(err), "candidates are consumed by acceptance")
}

func TestBridgeApp_NoGapsIsSuccess(t *testing.T) {
	ctx := newTestContext(t, scriptedText())
	tasks := NewTaskApp(ctx)
	a := mustCreate(t, tasks, "Draft the outline", 2)
	b := mustCreate(t, tasks, "Draft the introduction", 3, a.ID)

	sess := reasoning.NewSession(user, "Draft the outline and the introduction", []string{a.ID, b.ID})
	sess.Status = reasoning.StatusCompleted
	sess.Plan = &reasoning.Plan{Order: []string{a.ID, b.ID}, Edges: []task.Edge{task.DependsOn(b.ID, a.ID, 1)}}
	require.NoError(t, ctx.Store.ReplaceSession(sess))

	res, err := NewBridgeApp(ctx).DetectGaps(context.Background(), user, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Gaps)
	assert.NotNil(t, res.Gaps)
	assert.NotEmpty(t, res.Message)
	assert.NotEmpty(t, res.AnalysisID)
}

func TestBridgeApp_DetectRequiresCompletedSession(t *testing.T) {
	ctx := newTestContext(t, scriptedText())
	sess := reasoning.NewSession(user, "Goal", nil)
	sess.Status = reasoning.StatusFailed
	require.NoError(t, ctx.Store.ReplaceSession(sess))

	_, err := NewBridgeApp(ctx).DetectGaps(context.Background(), user, sess.ID)
	assert.Equal(t, KindValidation, Kind(err))

	_, err = NewBridgeApp(ctx).DetectGaps(context.Background(), user, "sess-gone")
	assert.Equal(t, KindNotFound, Kind(err))
}

// storedAnalysis saves an analysis with one structural candidate between
// pred and succ.
func storedAnalysis(t *testing.T, ctx *Context, sessionID, pred, succ string) (analysisID, candidateID string) {
	t.Helper()
	c := bridge.Candidate{
		ID:              "cand-fixed",
		Lane:            bridge.LaneStructural,
		Text:            "Prepare the release notes",
		EstimatedEffort: 2,
		CognitionLevel:  task.CognitionLow,
		Confidence:      0.6,
		Reasoning:       "fills the gap",
		PredecessorID:   pred,
		SuccessorID:     succ,
		GapIndex:        0,
		DedupHash:       bridge.DedupHash("Prepare the release notes"),
	}
	an := &memory.Analysis{
		ID:        memory.NewAnalysisID(),
		UserID:    user,
		SessionID: sessionID,
		Result: &bridge.Result{Gaps: []bridge.GapResult{{
			Gap:        gaps.Gap{PredecessorID: pred, SuccessorID: succ},
			Candidates: []bridge.Candidate{c},
		}}},
	}
	require.NoError(t, ctx.Store.SaveAnalysis(an))
	return an.ID, c.ID
}

func TestBridgeApp_AcceptCycleWritesNothing(t *testing.T) {
	ctx := newTestContext(t, scriptedText())
	sessionID, ids := scenario(t, ctx)
	goals, mock := ids[0], ids[1]

	// Inserting between mockups and goals backwards closes a loop:
	// new depends on mockups, goals depends on new, mockups depends on goals.
	analysisID, candID := storedAnalysis(t, ctx, sessionID, mock, goals)

	_, err := NewBridgeApp(ctx).Accept(context.Background(), user, AcceptRequest{AnalysisID: analysisID, AcceptedIDs: []string{candID}})
	require.Error(t, err)
	assert.Equal(t, KindInvariant, Kind(err))
	body := Describe(err)
	assert.Equal(t, "cycle_detected", body.Code)
	assert.Contains(t, body.Nodes, goals)
	assert.Contains(t, body.Nodes, mock)

	list, err := NewTaskApp(ctx).List(user, true)
	require.NoError(t, err)
	assert.Len(t, list.Tasks, 3)
	assert.Len(t, list.Edges, 1)

	an, err := ctx.Store.GetAnalysis(analysisID)
	require.NoError(t, err)
	assert.Len(t, an.Result.Candidates(), 1, "rejected candidates stay available")
}

func TestBridgeApp_PolicyDenialWritesNothing(t *testing.T) {
	ctx := newTestContext(t, scriptedText())
	engine, err := policy.NewEngineWithPolicies(context.Background(), []*policy.PolicyFile{policy.DefaultPolicy()})
	require.NoError(t, err)
	ctx.Policy = engine

	sessionID, ids := scenario(t, ctx)
	analysisID, candID := storedAnalysis(t, ctx, sessionID, ids[1], ids[2])

	_, err = NewBridgeApp(ctx).Accept(context.Background(), user, AcceptRequest{
		AnalysisID:  analysisID,
		AcceptedIDs: []string{candID},
		Edits:       []CandidateEdit{{CandidateID: candID, Text: "  "}},
	})
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
	assert.NotEmpty(t, pe.Violations)
	assert.Equal(t, KindValidation, Kind(err))
	assert.Equal(t, "policy_denied", Describe(err).Code)

	list, err := NewTaskApp(ctx).List(user, true)
	require.NoError(t, err)
	assert.Len(t, list.Tasks, 3)

	effort := 3.0
	out, err := NewBridgeApp(ctx).Accept(context.Background(), user, AcceptRequest{
		AnalysisID:  analysisID,
		AcceptedIDs: []string{candID},
		Edits:       []CandidateEdit{{CandidateID: candID, Text: "Write the store listing", EstimatedEffort: &effort}},
	})
	require.NoError(t, err)
	created, err := NewTaskApp(ctx).Get(user, out.InsertedIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "Write the store listing", created.Text)
	assert.Equal(t, 3.0, created.EstimatedEffort)
}

func TestBridgeApp_AcceptEffortOnlyEdit(t *testing.T) {
	ctx := newTestContext(t, scriptedText())
	engine, err := policy.NewEngineWithPolicies(context.Background(), []*policy.PolicyFile{policy.DefaultPolicy()})
	require.NoError(t, err)
	ctx.Policy = engine

	sessionID, ids := scenario(t, ctx)
	analysisID, candID := storedAnalysis(t, ctx, sessionID, ids[1], ids[2])

	effort := 3.0
	out, err := NewBridgeApp(ctx).Accept(context.Background(), user, AcceptRequest{
		AnalysisID:  analysisID,
		AcceptedIDs: []string{candID},
		Edits:       []CandidateEdit{{CandidateID: candID, EstimatedEffort: &effort}},
	})
	require.NoError(t, err)
	require.Len(t, out.InsertedIDs, 1)

	created, err := NewTaskApp(ctx).Get(user, out.InsertedIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "Prepare the release notes", created.Text)
	assert.Equal(t, 3.0, created.EstimatedEffort)
}

func TestBridgeApp_AcceptUnknownCandidate(t *testing.T) {
	ctx := newTestContext(t, scriptedText())
	sessionID, ids := scenario(t, ctx)
	analysisID, _ := storedAnalysis(t, ctx, sessionID, ids[1], ids[2])

	_, err := NewBridgeApp(ctx).Accept(context.Background(), user, AcceptRequest{AnalysisID: analysisID, AcceptedIDs: []string{"cand-nope"}})
	assert.Equal(t, KindNotFound, Kind(err))

	_, err = NewBridgeApp(ctx).Accept(context.Background(), user, AcceptRequest{AnalysisID: analysisID})
	assert.Equal(t, KindValidation, Kind(err))

	_, err = NewBridgeApp(ctx).Accept(context.Background(), "intruder", AcceptRequest{AnalysisID: analysisID, AcceptedIDs: []string{"cand-fixed"}})
	assert.Equal(t, KindNotFound, Kind(err))
}

func TestReflectionApp_SubmitThenToggle(t *testing.T) {
	text := scriptedText()
	ctx := newTestContext(t, text)
	tasks := NewTaskApp(ctx)
	outreach := mustCreate(t, tasks, "Draft customer outreach emails", 3)
	for _, s := range []string{
		"Design onboarding mockups",
		"Write API integration tests",
		"Set up CI pipeline",
		"Record product demo video",
		"Plan pricing experiment",
	} {
		mustCreate(t, tasks, s, 4)
	}
	refl := NewReflectionApp(ctx)
	bg := context.Background()

	sub, err := refl.Submit(bg, user, SubmitReflectionRequest{Text: "Legal blocked customer outreach"})
	require.NoError(t, err)
	require.NotNil(t, sub.Intent)
	assert.Equal(t, reflection.TypeConstraint, sub.Intent.Type)
	assert.Equal(t, reflection.MethodClassified, sub.CalculationMethod)
	require.Len(t, sub.Effects, 1)
	assert.Equal(t, outreach.ID, sub.Effects[0].TaskID)
	assert.Equal(t, reflection.KindBlocked, sub.Effects[0].Effect)

	off, err := refl.Toggle(bg, user, sub.Reflection.ID, false)
	require.NoError(t, err)
	assert.Empty(t, off.Effects)
	assert.Equal(t, reflection.MethodCached, off.CalculationMethod)

	on, err := refl.Toggle(bg, user, sub.Reflection.ID, true)
	require.NoError(t, err)
	assert.Equal(t, sub.Effects, on.Effects)
	assert.Equal(t, 1, text.Calls("classify_reflection"), "toggles never classify")

	list, err := refl.List(user)
	require.NoError(t, err)
	require.Len(t, list.Reflections, 1)
	assert.NotNil(t, list.Reflections[0].Intent)
	assert.Equal(t, on.Effects, list.Effects)

	_, err = refl.Toggle(bg, "intruder", sub.Reflection.ID, false)
	assert.Equal(t, KindNotFound, Kind(err))
	_, err = refl.Submit(bg, user, SubmitReflectionRequest{Text: "   "})
	assert.Equal(t, KindValidation, Kind(err))
}

func TestReflectionApp_DegradesWithoutTextService(t *testing.T) {
	ctx := newTestContext(t, llmtest.Failing())
	mustCreate(t, NewTaskApp(ctx), "Draft customer outreach emails", 3)

	sub, err := NewReflectionApp(ctx).Submit(context.Background(), user, SubmitReflectionRequest{Text: "Legal blocked customer outreach"})
	require.NoError(t, err)
	assert.True(t, sub.Degraded)
	assert.NotEmpty(t, sub.Warnings)
	assert.Empty(t, sub.Effects)
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{&task.CycleError{Nodes: []string{"a"}}, KindInvariant},
		{fmt.Errorf("load: %w", memory.ErrNotFound), KindNotFound},
		{ErrNoActiveGoal, KindValidation},
		{fmt.Errorf("x: %w", task.ErrInvalidTask), KindValidation},
		{&PolicyError{Violations: []string{"no"}}, KindValidation},
		{llm.ErrNoProvider, KindExternal},
		{errors.New("disk on fire"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), tt.err.Error())
	}
	assert.Equal(t, ErrorKind(""), Kind(nil))
	assert.Equal(t, "internal_error", Describe(errors.New("boom")).Code)
}
