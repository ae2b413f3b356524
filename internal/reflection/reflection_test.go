package reflection

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/llm/llmtest"
	"github.com/josephgoksu/Wayline/internal/task"
)

// memStore is an in-memory Store.
type memStore struct {
	mu          sync.Mutex
	reflections map[string]*Reflection
	intents     map[string]*Intent
	tasks       []task.Task
	effects     map[string][]Effect
}

func newMemStore(tasks ...task.Task) *memStore {
	return &memStore{
		reflections: map[string]*Reflection{},
		intents:     map[string]*Intent{},
		tasks:       tasks,
		effects:     map[string][]Effect{},
	}
}

func (m *memStore) add(r Reflection) Reflection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reflections[r.ID] = &r
	return r
}

func (m *memStore) LookupIntent(id string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.intents[id]; ok {
		cp := *in
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) LookupIntentByHash(userID, hash string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.intents {
		if in.UserID == userID && in.TextHash == hash {
			cp := *in
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) SaveIntent(in *Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *in
	m.intents[in.ReflectionID] = &cp
	return nil
}

func (m *memStore) GetReflection(id string) (*Reflection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reflections[id]
	if !ok {
		return nil, fmt.Errorf("reflection %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListReflections(userID string) ([]Reflection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reflection
	for _, r := range m.reflections {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) SetReflectionActive(id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reflections[id]
	if !ok {
		return fmt.Errorf("reflection %s not found", id)
	}
	r.Active = active
	return nil
}

func (m *memStore) ListTasks(string) ([]task.Task, error) { return m.tasks, nil }

func (m *memStore) ReplaceTaskEffects(userID string, effects []Effect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.effects[userID] = append([]Effect{}, effects...)
	return nil
}

const legalBlocker = `{"type": "constraint", "subtype": "blocker", "strength": "hard", "keywords": ["customer outreach"], "summary": "Legal blocked outreach to customers"}`

func planTasks() []task.Task {
	return []task.Task{
		{ID: "t1", Text: "Draft customer outreach emails", CognitionLevel: task.CognitionMedium},
		{ID: "t2", Text: "Design onboarding mockups", CognitionLevel: task.CognitionHigh},
		{ID: "t3", Text: "Write API integration tests", CognitionLevel: task.CognitionHigh},
		{ID: "t4", Text: "Schedule customer outreach calls", CognitionLevel: task.CognitionLow},
		{ID: "t5", Text: "Launch app to the store", CognitionLevel: task.CognitionMedium},
		{ID: "t6", Text: "Set up CI pipeline", CognitionLevel: task.CognitionMedium},
		{ID: "t7", Text: "Record product demo video", CognitionLevel: task.CognitionLow},
		{ID: "t8", Text: "Plan pricing experiment", CognitionLevel: task.CognitionHigh},
	}
}

func TestScenarioD_ToggleReusesCachedIntent(t *testing.T) {
	text := llmtest.Reply(legalBlocker)
	store := newMemStore(planTasks()...)
	adj := NewAdjuster(store, NewInterpreter(text, store, 0), DefaultBlockFloor)
	ctx := context.Background()

	r := store.add(NewReflection("u1", "Legal blocked customer outreach"))
	first, err := adj.ApplyNew(ctx, "u1", []string{r.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, MethodClassified, first.CalculationMethod)
	assert.Equal(t, 1, first.Classifications)
	require.Len(t, first.Effects, 2)
	for _, e := range first.Effects {
		assert.Equal(t, KindBlocked, e.Effect)
		assert.Equal(t, 1.0, e.Magnitude)
		assert.Equal(t, r.ID, e.ReflectionID)
	}
	assert.Equal(t, "t1", first.Effects[0].TaskID)
	assert.Equal(t, "t4", first.Effects[1].TaskID)

	var onSets [][]Effect
	for i := 0; i < 2; i++ {
		off, err := adj.Toggle(ctx, "u1", r.ID, false)
		require.NoError(t, err)
		assert.Empty(t, off.Effects)
		assert.Equal(t, MethodCached, off.CalculationMethod)

		on, err := adj.Toggle(ctx, "u1", r.ID, true)
		require.NoError(t, err)
		assert.Equal(t, MethodCached, on.CalculationMethod)
		assert.Zero(t, on.Classifications)
		onSets = append(onSets, on.Effects)
	}
	assert.Equal(t, first.Effects, onSets[0])
	assert.Equal(t, onSets[0], onSets[1])
	assert.Equal(t, 1, text.Calls(""), "classified exactly once")
	assert.Equal(t, onSets[1], store.effects["u1"])
}

func TestToggle_NeverCallsTextService(t *testing.T) {
	text := llmtest.Failing()
	store := newMemStore(planTasks()...)
	adj := NewAdjuster(store, NewInterpreter(text, store, 0), DefaultBlockFloor)

	// Active reflection with no intent: a cache miss on the fast path.
	r := store.add(NewReflection("u1", "Too tired for deep work today"))
	out, err := adj.Toggle(context.Background(), "u1", r.ID, true)
	require.NoError(t, err)
	assert.Zero(t, text.Calls(""))
	assert.Empty(t, out.Effects)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], r.ID)
}

func TestToggle_RejectsOtherUsersReflection(t *testing.T) {
	store := newMemStore()
	adj := NewAdjuster(store, NewInterpreter(llmtest.Failing(), store, 0), DefaultBlockFloor)
	r := store.add(NewReflection("u2", "Legal blocked customer outreach"))
	_, err := adj.Toggle(context.Background(), "u1", r.ID, false)
	assert.Error(t, err)
}

func TestInterpreter_CacheIdempotence(t *testing.T) {
	text := llmtest.Reply(legalBlocker)
	store := newMemStore()
	interp := NewInterpreter(text, store, 0)
	ctx := context.Background()
	r := store.add(NewReflection("u1", "Legal blocked customer outreach"))

	a, classified, err := interp.Interpret(ctx, r)
	require.NoError(t, err)
	assert.True(t, classified)
	b, classified, err := interp.Interpret(ctx, r)
	require.NoError(t, err)
	assert.False(t, classified)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, text.Calls("classify_reflection"))

	assert.Equal(t, TypeConstraint, a.Type)
	assert.Equal(t, SubtypeBlocker, a.Subtype)
	assert.Equal(t, PolarityNegative, a.Polarity, "defaulted")
	assert.Equal(t, []string{"customer outreach"}, a.Keywords)

	// Same text under another reflection of the same user is reused.
	twin := store.add(NewReflection("u1", "legal BLOCKED customer   outreach"))
	c, classified, err := interp.Interpret(ctx, twin)
	require.NoError(t, err)
	assert.False(t, classified)
	assert.Equal(t, twin.ID, c.ReflectionID)
	assert.Equal(t, 1, text.Calls(""))

	// Edited text is reclassified.
	r.Text = "Legal approved customer outreach"
	_, classified, err = interp.Interpret(ctx, r)
	require.NoError(t, err)
	assert.True(t, classified)
	assert.Equal(t, 2, text.Calls(""))
}

func TestInterpreter_FallsBackToContextOnly(t *testing.T) {
	text := llmtest.Failing()
	store := newMemStore()
	interp := NewInterpreter(text, store, 0)
	r := store.add(NewReflection("u1", "Legal blocked customer outreach"))

	in, classified, err := interp.Interpret(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, classified)
	assert.True(t, in.Degraded)
	assert.Equal(t, TypeInformation, in.Type)
	assert.Equal(t, SubtypeContextOnly, in.Subtype)
	assert.Equal(t, 2, text.Calls(""), "one retry")

	// Degraded intents are retried on the slow path.
	_, _, err = interp.Interpret(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 4, text.Calls(""))
}

func TestInterpreter_RejectsMismatchedPair(t *testing.T) {
	text := llmtest.Reply(`{"type": "opportunity", "subtype": "blocker", "strength": "hard", "keywords": ["x1"], "summary": "bad"}`)
	store := newMemStore()
	r := store.add(NewReflection("u1", "Something odd happened"))
	in, _, err := NewInterpreter(text, store, 0).Interpret(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, in.Degraded)
	assert.Equal(t, 2, text.Calls(""))
}

func TestInterpreter_CoalescesConcurrentCalls(t *testing.T) {
	release := make(chan struct{})
	text := llmtest.NewText(func(llm.Request) (*llm.Response, error) {
		<-release
		return &llm.Response{Content: legalBlocker}, nil
	})
	store := newMemStore()
	interp := NewInterpreter(text, store, 0)
	r := store.add(NewReflection("u1", "Legal blocked customer outreach"))

	var wg sync.WaitGroup
	results := make([]*Intent, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, _ = interp.Interpret(context.Background(), r)
		}(i)
	}
	close(release)
	wg.Wait()

	for _, in := range results {
		require.NotNil(t, in)
		assert.Equal(t, SubtypeBlocker, in.Subtype)
	}
	assert.LessOrEqual(t, text.Calls(""), 4)
	assert.GreaterOrEqual(t, text.Calls(""), 1)
}

func intent(id string, sub Subtype, strength Strength, keywords ...string) *Intent {
	return &Intent{ReflectionID: id, Type: subtypeOf[sub], Subtype: sub, Strength: strength, Polarity: PolarityNegative, Keywords: keywords}
}

func TestCompute_EffectMapping(t *testing.T) {
	tasks := planTasks()
	cases := []struct {
		name string
		in   *Intent
		kind Kind
		mag  float64
	}{
		{"hard blocker", intent("r", SubtypeBlocker, StrengthHard, "pricing"), KindBlocked, 1.0},
		{"soft blocker", intent("r", SubtypeBlocker, StrengthSoft, "pricing"), KindDemoted, 0.6},
		{"hard soft-block", intent("r", SubtypeSoftBlock, StrengthHard, "pricing"), KindDemoted, 0.6},
		{"soft soft-block", intent("r", SubtypeSoftBlock, StrengthSoft, "pricing"), KindDemoted, 0.4},
		{"hard boost", intent("r", SubtypeBoost, StrengthHard, "pricing"), KindBoosted, 0.6},
		{"soft boost", intent("r", SubtypeBoost, StrengthSoft, "pricing"), KindBoosted, 0.4},
		{"dependency", intent("r", SubtypeDependency, StrengthSoft, "pricing"), KindBoosted, 0.3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			effects, _ := Compute([]*Intent{tc.in}, tasks, 0)
			require.Len(t, effects, 1)
			assert.Equal(t, "t8", effects[0].TaskID)
			assert.Equal(t, tc.kind, effects[0].Effect)
			assert.Equal(t, tc.mag, effects[0].Magnitude)
		})
	}

	info, _ := Compute([]*Intent{intent("r", SubtypeContextOnly, StrengthHard, "pricing")}, tasks, 0)
	assert.Empty(t, info)
}

func TestCompute_CapacityUsesPolarity(t *testing.T) {
	tasks := planTasks()
	drain := intent("r", SubtypeEnergyLevel, StrengthSoft)
	effects, _ := Compute([]*Intent{drain}, tasks, 0)
	require.Len(t, effects, 3)
	for _, e := range effects {
		assert.Equal(t, KindDemoted, e.Effect)
		assert.Equal(t, 0.3, e.Magnitude)
	}

	lift := intent("r", SubtypeEnergyLevel, StrengthSoft)
	lift.Polarity = PolarityPositive
	effects, _ = Compute([]*Intent{lift}, tasks, 0)
	require.Len(t, effects, 3)
	assert.Equal(t, KindBoosted, effects[0].Effect)
	assert.Equal(t, []string{"t2", "t3", "t8"}, []string{effects[0].TaskID, effects[1].TaskID, effects[2].TaskID})
}

func TestCompute_Precedence(t *testing.T) {
	tasks := planTasks()
	effects, _ := Compute([]*Intent{
		intent("r1", SubtypeBoost, StrengthHard, "outreach"),
		intent("r2", SubtypeBlocker, StrengthHard, "outreach calls"),
		intent("r3", SubtypeSoftBlock, StrengthSoft, "outreach emails"),
	}, tasks, 0)
	require.Len(t, effects, 2)
	assert.Equal(t, Effect{ReflectionID: "r3", TaskID: "t1", Effect: KindDemoted, Magnitude: 0.4, Reason: effects[0].Reason}, effects[0])
	assert.Equal(t, KindBlocked, effects[1].Effect)
	assert.Equal(t, "r2", effects[1].ReflectionID)
}

func TestCompute_BlockFloor(t *testing.T) {
	tasks := []task.Task{
		{ID: "a", Text: "Email customer list"},
		{ID: "b", Text: "Email press contacts"},
		{ID: "c", Text: "Email investors update"},
		{ID: "d", Text: "Design landing page"},
		{ID: "e", Text: "Build signup form"},
		{ID: "f", Text: "Write launch post"},
		{ID: "g", Text: "Old archived email task", Archived: true},
	}
	effects, warnings := Compute([]*Intent{intent("r", SubtypeBlocker, StrengthHard, "email")}, tasks, 5)
	require.Len(t, effects, 3, "archived task untouched")
	// 6 active, 3 blocked leaves 3 available; two blocks are relaxed.
	assert.Equal(t, KindDemoted, effects[0].Effect)
	assert.True(t, effects[0].Warning)
	assert.Equal(t, KindDemoted, effects[1].Effect)
	assert.True(t, effects[1].Warning)
	assert.Equal(t, KindBlocked, effects[2].Effect)
	assert.False(t, effects[2].Warning)
	require.Len(t, warnings, 1)

	effects, warnings = Compute([]*Intent{intent("r", SubtypeBlocker, StrengthHard, "email")}, tasks, 3)
	assert.Empty(t, warnings)
	for _, e := range effects {
		assert.Equal(t, KindBlocked, e.Effect)
	}
}

func TestMatch_Phrases(t *testing.T) {
	tasks := planTasks()
	got := Match(intent("r", SubtypeBlocker, StrengthHard, "Customer Outreach"), tasks)
	assert.Equal(t, []string{"t1", "t4"}, task.IDs(got))
	assert.Empty(t, Match(intent("r", SubtypeBlocker, StrengthHard, "outreach customer"), tasks))
	assert.Empty(t, Match(intent("r", SubtypeBlocker, StrengthHard), tasks))
}

func TestValidPair(t *testing.T) {
	assert.True(t, ValidPair(TypeConstraint, SubtypeSoftBlock))
	assert.True(t, ValidPair(TypeInformation, SubtypeContextOnly))
	assert.False(t, ValidPair(TypeOpportunity, SubtypeBlocker))
	assert.False(t, ValidPair(TypeCapacity, "tired"))
}
