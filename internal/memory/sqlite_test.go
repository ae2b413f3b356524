package memory

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/Wayline/internal/bridge"
	"github.com/josephgoksu/Wayline/internal/gaps"
	"github.com/josephgoksu/Wayline/internal/knowledge"
	"github.com/josephgoksu/Wayline/internal/reasoning"
	"github.com/josephgoksu/Wayline/internal/reflection"
	"github.com/josephgoksu/Wayline/internal/task"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedTasks(t *testing.T, s *SQLiteStore, userID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		tk := task.Task{ID: id, UserID: userID, Text: "Task number " + id, EstimatedEffort: 4,
			CognitionLevel: task.CognitionMedium, Source: task.SourceManual, IsManual: true, Confidence: 1}
		require.NoError(t, s.CreateTask(&tk))
	}
}

func TestNewSQLiteStore_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wayline.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Ping())
	require.NoError(t, store.Close())
	assert.FileExists(t, path)
}

func TestTasks_RoundTripAndArchive(t *testing.T) {
	s := setupTestStore(t)
	q := 0.8
	tk := task.Task{UserID: "u1", Text: "Write the onboarding email", EstimatedEffort: 2.5,
		CognitionLevel: task.CognitionLow, Source: task.SourceExtracted, Confidence: 0.7, QualityScore: &q}
	require.NoError(t, s.CreateTask(&tk))
	require.NotEmpty(t, tk.ID)

	got, err := s.GetTask(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.Text, got.Text)
	assert.Equal(t, 2.5, got.EstimatedEffort)
	assert.Equal(t, task.CognitionLow, got.CognitionLevel)
	require.NotNil(t, got.QualityScore)
	assert.InDelta(t, 0.8, *got.QualityScore, 1e-9)
	assert.False(t, got.Archived)

	require.NoError(t, s.ArchiveTask("u1", tk.ID))
	list, err := s.ListTasks("u1")
	require.NoError(t, err)
	require.Len(t, list, 1, "archived rows are kept")
	assert.True(t, list[0].Archived)

	assert.ErrorIs(t, s.ArchiveTask("someone-else", tk.ID), ErrNotFound)
	_, err = s.GetTask("task-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func fixedPlan(plan *task.MergePlan) Planner {
	return func([]task.Task, []task.Edge) (*task.MergePlan, error) { return plan, nil }
}

func linkPlanner(from, to string) Planner {
	return func(tasks []task.Task, edges []task.Edge) (*task.MergePlan, error) {
		return task.PlanLink(tasks, edges, []task.Edge{task.DependsOn(from, to, 1)})
	}
}

func TestMutateGraph_PlansAgainstCommittedGraph(t *testing.T) {
	s := setupTestStore(t)
	seedTasks(t, s, "u1", "ta", "tb")

	// The opposite link starts while the first plan is being built. It can
	// only read the graph after the first commit, so it must see the cycle.
	second := make(chan error, 1)
	_, err := s.MutateGraph("u1", func(tasks []task.Task, edges []task.Edge) (*task.MergePlan, error) {
		go func() {
			_, err := s.MutateGraph("u1", linkPlanner("tb", "ta"))
			second <- err
		}()
		time.Sleep(20 * time.Millisecond)
		return linkPlanner("ta", "tb")(tasks, edges)
	})
	require.NoError(t, err)

	select {
	case err = <-second:
	case <-time.After(5 * time.Second):
		t.Fatal("second mutation never ran")
	}
	assert.ErrorIs(t, err, task.ErrCycle)

	tasks, err := s.ListTasks("u1")
	require.NoError(t, err)
	edges, err := s.ListEdges("u1")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "ta", edges[0].FromID)
	_, err = task.TopologicalSort(tasks, edges)
	assert.NoError(t, err)
}

func TestMutateGraph_PlannerErrorWritesNothing(t *testing.T) {
	s := setupTestStore(t)
	seedTasks(t, s, "u1", "t1")
	boom := errors.New("boom")

	_, err := s.MutateGraph("u1", func([]task.Task, []task.Edge) (*task.MergePlan, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	tasks, err := s.ListTasks("u1")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestMutateGraph_CommitsChain(t *testing.T) {
	s := setupTestStore(t)
	seedTasks(t, s, "u1", "t2", "t5")

	existing, err := s.ListTasks("u1")
	require.NoError(t, err)
	batch := []task.Insertion{{
		PredecessorID: "t2",
		SuccessorID:   "t5",
		Tasks: []task.Task{
			{ID: "t3", Text: "Build landing page", EstimatedEffort: 8, CognitionLevel: task.CognitionMedium, Source: task.SourceAIGenerated},
			{ID: "t4", Text: "Run beta test", EstimatedEffort: 6, CognitionLevel: task.CognitionMedium, Source: task.SourceAIGenerated},
		},
	}}
	plan, err := task.PlanMerge(existing, nil, batch)
	require.NoError(t, err)
	_, err = s.MutateGraph("u1", fixedPlan(plan))
	require.NoError(t, err)

	edges, err := s.ListEdges("u1")
	require.NoError(t, err)
	keys := make([]string, len(edges))
	for i, e := range edges {
		keys[i] = e.FromID + "->" + e.ToID
	}
	assert.ElementsMatch(t, []string{"t3->t2", "t4->t3", "t5->t4"}, keys)

	tasks, err := s.ListTasks("u1")
	require.NoError(t, err)
	assert.Len(t, tasks, 4)
}

func TestMutateGraph_RollsBackOnFailure(t *testing.T) {
	s := setupTestStore(t)
	seedTasks(t, s, "u1", "t1", "t2")
	_, err := s.MutateGraph("u1", fixedPlan(&task.MergePlan{AddEdges: []task.Edge{task.DependsOn("t2", "t1", 1)}}))
	require.NoError(t, err)

	before, err := s.ListEdges("u1")
	require.NoError(t, err)

	// The second edge points at a task that does not exist, so the foreign
	// key fails after the new task and the removal were already executed.
	bad := &task.MergePlan{
		NewTasks:    []task.Task{{ID: "t9", Text: "Half written task", EstimatedEffort: 1, CognitionLevel: task.CognitionLow, Source: task.SourceAIGenerated}},
		RemoveEdges: []task.Edge{task.DependsOn("t2", "t1", 1)},
		AddEdges:    []task.Edge{task.DependsOn("t9", "t1", 1), task.DependsOn("t2", "ghost", 1)},
	}
	_, err = s.MutateGraph("u1", fixedPlan(bad))
	require.Error(t, err)

	after, err := s.ListEdges("u1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	tasks, err := s.ListTasks("u1")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func testSession(userID string) *reasoning.Session {
	sess := reasoning.NewSession(userID, "Launch the app", []string{"t1", "t2"})
	sess.Status = reasoning.StatusCompleted
	sess.Plan = &reasoning.Plan{
		Order:      []string{"t1", "t2"},
		Waves:      [][]string{{"t1"}, {"t2"}},
		Edges:      []task.Edge{task.DependsOn("t2", "t1", 1)},
		Confidence: map[string]float64{"t1": 0.8, "t2": 0.7},
	}
	sess.Metadata.ToolCalls[reasoning.ToolGraphQuery] = 1
	sess.Trace = []reasoning.Step{
		{Number: 1, Tool: reasoning.ToolGraphQuery, Input: json.RawMessage(`{"tasks":2}`), Output: json.RawMessage(`{"edges":1}`), Status: reasoning.StepCompleted},
		{Number: 2, Thought: "synthesize", Status: reasoning.StepCompleted},
	}
	done := time.Now().UTC()
	sess.CompletedAt = &done
	return sess
}

func TestReplaceSession_KeepsOnePerUser(t *testing.T) {
	s := setupTestStore(t)

	first := testSession("u1")
	require.NoError(t, s.ReplaceSession(first))
	got, err := s.GetSession(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Plan.Order, got.Plan.Order)
	assert.Equal(t, 0.8, got.Plan.Confidence["t1"])
	require.Len(t, got.Trace, 2)
	assert.JSONEq(t, `{"edges":1}`, string(got.Trace[0].Output))
	assert.Empty(t, got.Trace[1].Tool)
	assert.Equal(t, 1, got.Metadata.ToolCalls[reasoning.ToolGraphQuery])

	second := testSession("u1")
	require.NoError(t, s.ReplaceSession(second))

	_, err = s.GetSession(first.ID)
	assert.ErrorIs(t, err, ErrNotFound, "superseded session is gone")
	cur, err := s.CurrentSession("u1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, cur.ID)

	var steps int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM trace_steps`).Scan(&steps))
	assert.Equal(t, 2, steps, "old trace cascaded")
}

func TestReplaceSession_ConcurrentStartsLeaveOne(t *testing.T) {
	s := setupTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.ReplaceSession(testSession("u1")))
		}()
	}
	wg.Wait()

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE user_id = 'u1'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func testAnalysis(sessionID string) *Analysis {
	return &Analysis{
		UserID:    "u1",
		SessionID: sessionID,
		Result: &bridge.Result{
			Gaps: []bridge.GapResult{{
				Gap: gaps.Gap{PredecessorID: "t1", SuccessorID: "t2", Confidence: 0.5, Type: gaps.TypePhaseJump},
				Candidates: []bridge.Candidate{
					{ID: "c1", Lane: bridge.LaneStructural, Text: "Write test plan", GapIndex: 0, PredecessorID: "t1", SuccessorID: "t2"},
					{ID: "c2", Lane: bridge.LaneStructural, Text: "Run usability test", GapIndex: 0, PredecessorID: "t1", SuccessorID: "t2"},
				},
			}},
			Semantic: []bridge.Candidate{{ID: "c3", Lane: bridge.LaneSemantic, Text: "Set up analytics", GapIndex: -1, PredecessorID: "t2"}},
			Degraded: true,
			Warnings: []string{"lexical"},
		},
	}
}

func TestAnalysis_RoundTripAndAccept(t *testing.T) {
	s := setupTestStore(t)
	seedTasks(t, s, "u1", "t1", "t2")
	sess := testSession("u1")
	require.NoError(t, s.ReplaceSession(sess))

	a := testAnalysis(sess.ID)
	require.NoError(t, s.SaveAnalysis(a))

	got, err := s.GetAnalysis(a.ID)
	require.NoError(t, err)
	require.Len(t, got.Result.Gaps, 1)
	assert.Len(t, got.Result.Gaps[0].Candidates, 2)
	assert.Len(t, got.Result.Semantic, 1)
	assert.True(t, got.Result.Degraded)
	assert.Equal(t, []string{"lexical"}, got.Result.Warnings)

	plan := &task.MergePlan{
		NewTasks: []task.Task{{ID: "t3", Text: "Write test plan", EstimatedEffort: 2, CognitionLevel: task.CognitionMedium, Source: task.SourceAIGenerated}},
		AddEdges: []task.Edge{task.DependsOn("t3", "t1", 1)},
	}
	_, err = s.AcceptCandidates("u1", a.ID, []string{"c1"}, fixedPlan(plan))
	require.NoError(t, err)

	got, err = s.GetAnalysis(a.ID)
	require.NoError(t, err)
	assert.Len(t, got.Result.Gaps[0].Candidates, 1)

	// Accepting the same candidate twice writes nothing.
	again := &task.MergePlan{NewTasks: []task.Task{{ID: "t4", Text: "Write test plan", EstimatedEffort: 2, CognitionLevel: task.CognitionMedium, Source: task.SourceAIGenerated}}}
	_, err = s.AcceptCandidates("u1", a.ID, []string{"c1"}, fixedPlan(again))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetTask("t4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalysis_GoesWithSession(t *testing.T) {
	s := setupTestStore(t)
	sess := testSession("u1")
	require.NoError(t, s.ReplaceSession(sess))
	a := testAnalysis(sess.ID)
	require.NoError(t, s.SaveAnalysis(a))

	require.NoError(t, s.ReplaceSession(testSession("u1")))
	_, err := s.GetAnalysis(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM candidates`).Scan(&n))
	assert.Zero(t, n)
}

func TestSweep_RemovesExpired(t *testing.T) {
	s := setupTestStore(t)
	old := testSession("u-old")
	old.CreatedAt = time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, s.ReplaceSession(old))
	fresh := testSession("u-new")
	require.NoError(t, s.ReplaceSession(fresh))

	res, err := s.Sweep(time.Now().Add(-7 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Sessions)

	_, err = s.GetSession(old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetSession(fresh.ID)
	assert.NoError(t, err)
}

func TestGoalAndDocuments(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetGoal("u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetGoal("u1", "Launch the beta"))
	require.NoError(t, s.SetGoal("u1", "Launch the app"))
	goal, err := s.GetGoal("u1")
	require.NoError(t, err)
	assert.Equal(t, "Launch the app", goal)

	require.NoError(t, s.AddDocument(&knowledge.Document{UserID: "u1", Title: "Launch brief", Body: "The launch needs a press kit and a pricing page."}))
	require.NoError(t, s.AddDocument(&knowledge.Document{UserID: "u1", Title: "Hiring", Body: "Interview two designers."}))
	require.NoError(t, s.AddDocument(&knowledge.Document{UserID: "u2", Title: "Other launch", Body: "Not yours."}))

	hits, err := s.SearchDocuments("u1", "pricing for the launch", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Launch brief", hits[0].Title)

	hits, err = s.SearchDocuments("u1", "the of", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	docs, err := s.ListDocuments("u1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestReflectionsAndIntents(t *testing.T) {
	s := setupTestStore(t)
	r := reflection.NewReflection("u1", "Legal blocked customer outreach")
	require.NoError(t, s.SaveReflection(&r))

	in, err := s.LookupIntent(r.ID)
	require.NoError(t, err)
	assert.Nil(t, in, "miss is nil, nil")

	intent := &reflection.Intent{
		ReflectionID: r.ID, UserID: "u1", Type: reflection.TypeConstraint, Subtype: reflection.SubtypeBlocker,
		Strength: reflection.StrengthHard, Polarity: reflection.PolarityNegative,
		Keywords: []string{"customer outreach"}, Duration: &reflection.Duration{Amount: 2, Unit: "weeks"},
		Summary: "Outreach is blocked", TextHash: reflection.TextHash(r.Text),
	}
	require.NoError(t, s.SaveIntent(intent))

	got, err := s.LookupIntent(r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"customer outreach"}, got.Keywords)
	assert.Equal(t, 2, got.Duration.Amount)

	twin, err := s.LookupIntentByHash("u1", reflection.TextHash("legal  blocked customer outreach"))
	require.NoError(t, err)
	require.NotNil(t, twin)
	assert.Equal(t, r.ID, twin.ReflectionID)

	intent.Degraded = true
	require.NoError(t, s.SaveIntent(intent))
	twin, err = s.LookupIntentByHash("u1", intent.TextHash)
	require.NoError(t, err)
	assert.Nil(t, twin, "degraded intents are not shared")

	require.NoError(t, s.SetReflectionActive(r.ID, false))
	list, err := s.ListReflections("u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Active)
	assert.True(t, errors.Is(s.SetReflectionActive("refl-none", true), ErrNotFound))

	effects := []reflection.Effect{
		{ReflectionID: r.ID, TaskID: "t2", Effect: reflection.KindDemoted, Magnitude: 0.6, Reason: "x", Warning: true},
		{ReflectionID: r.ID, TaskID: "t1", Effect: reflection.KindBlocked, Magnitude: 1, Reason: "y"},
	}
	require.NoError(t, s.ReplaceTaskEffects("u1", effects))
	require.NoError(t, s.ReplaceTaskEffects("u1", effects[:1]))
	stored, err := s.ListTaskEffects("u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "t2", stored[0].TaskID)
	assert.True(t, stored[0].Warning)
}

func TestEmbeddingsCache(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.PutEmbeddings(map[string][]float32{"a": {0.5, -1.25, 3}, "b": {1}}))

	got, err := s.GetEmbeddings([]string{"a", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]float32{"a": {0.5, -1.25, 3}}, got)

	empty, err := s.GetEmbeddings(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
