package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/josephgoksu/Wayline/internal/bridge"
	"github.com/josephgoksu/Wayline/internal/gaps"
	"github.com/josephgoksu/Wayline/internal/memory"
	"github.com/josephgoksu/Wayline/internal/metrics"
	"github.com/josephgoksu/Wayline/internal/policy"
	"github.com/josephgoksu/Wayline/internal/reasoning"
	"github.com/josephgoksu/Wayline/internal/task"
	"github.com/josephgoksu/Wayline/internal/telemetry"
)

// GapsResult is the response to a gap analysis.
type GapsResult struct {
	AnalysisID string             `json:"analysis_id"`
	SessionID  string             `json:"session_id"`
	Gaps       []bridge.GapResult `json:"gaps"`
	Candidates []bridge.Candidate `json:"candidates"`
	Dropped    int                `json:"dropped"`
	Degraded   bool               `json:"degraded"`
	Warnings   []string           `json:"warnings,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// CandidateEdit changes a candidate before it is accepted. An empty Text
// keeps the generated text.
type CandidateEdit struct {
	CandidateID     string   `json:"candidate_id" validate:"required"`
	Text            string   `json:"text"`
	EstimatedEffort *float64 `json:"estimated_effort,omitempty"`
}

// AcceptRequest accepts candidates of one analysis.
type AcceptRequest struct {
	AnalysisID  string          `json:"analysis_id" validate:"required"`
	AcceptedIDs []string        `json:"accepted_ids" validate:"required,min=1,dive,required"`
	Edits       []CandidateEdit `json:"edits" validate:"dive"`
}

// AcceptResult reports committed insertions.
type AcceptResult struct {
	Success     bool     `json:"success"`
	InsertedIDs []string `json:"inserted_ids"`
	Order       []string `json:"order"`
	Warnings    []string `json:"warnings,omitempty"`
}

// BridgeApp finds gaps in a session's plan and commits accepted bridging
// tasks. This is THE implementation - CLI, HTTP and MCP all call these
// methods.
type BridgeApp struct {
	ctx *Context
}

// NewBridgeApp creates a new bridging application service.
func NewBridgeApp(ctx *Context) *BridgeApp {
	return &BridgeApp{ctx: ctx}
}

// DetectGaps analyses the plan of a completed session and stores the
// surviving candidates for acceptance. No gaps is a successful result.
func (a *BridgeApp) DetectGaps(ctx context.Context, userID, sessionID string) (*GapsResult, error) {
	sess, err := NewReasoningApp(a.ctx).Session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != reasoning.StatusCompleted || sess.Plan == nil {
		return nil, fmt.Errorf("%w: session %s has no plan (status %s)", ErrInvalidRequest, sessionID, sess.Status)
	}

	tasks, err := a.ctx.Store.ListTasks(userID)
	if err != nil {
		return nil, err
	}
	index := task.Index(tasks)
	ordered := make([]task.Task, 0, len(sess.Plan.Order))
	for _, id := range sess.Plan.Order {
		if t, ok := index[id]; ok && !t.Archived {
			ordered = append(ordered, t)
		}
	}

	detector := gaps.NewDetector(a.ctx.Cfg.Gaps)
	found := detector.Detect(ordered, sess.Plan.Edges)

	engine := bridge.NewEngine(a.ctx.Text, a.ctx.Scorer, a.ctx.Store, a.ctx.Cfg.Bridge)
	res, err := engine.Run(ctx, bridge.Request{
		UserID:  userID,
		Goal:    sess.Goal,
		Ordered: ordered,
		Gaps:    found,
	})
	if err != nil {
		return nil, err
	}

	an := &memory.Analysis{
		ID:        memory.NewAnalysisID(),
		UserID:    userID,
		SessionID: sess.ID,
		Result:    res,
	}
	if err := a.ctx.Store.SaveAnalysis(an); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}

	out := &GapsResult{
		AnalysisID: an.ID,
		SessionID:  sess.ID,
		Gaps:       res.Gaps,
		Candidates: res.Candidates(),
		Dropped:    len(res.Dropped),
		Degraded:   res.Degraded,
		Warnings:   res.Warnings,
	}
	if out.Gaps == nil {
		out.Gaps = []bridge.GapResult{}
	}
	if out.Candidates == nil {
		out.Candidates = []bridge.Candidate{}
	}
	if len(found) == 0 {
		out.Message = "No gaps found: every step of the plan follows from the one before."
	}

	a.ctx.track(telemetry.EventGapsDetected, telemetry.Properties{
		"gaps":       len(found),
		"candidates": len(out.Candidates),
		"degraded":   res.Degraded,
	})
	return out, nil
}

// Accept inserts the chosen candidates as one batch. Candidates of the
// same gap chain in acceptance order between the gap's tasks; semantic
// candidates hang off their anchor. The whole batch is rejected, with no
// writes, when it fails validation, policy or the acyclicity check.
func (a *BridgeApp) Accept(ctx context.Context, userID string, req AcceptRequest) (*AcceptResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	an, err := a.ctx.Store.GetAnalysis(req.AnalysisID)
	if err != nil {
		return nil, err
	}
	if an.UserID != userID {
		return nil, fmt.Errorf("analysis %s: %w", req.AnalysisID, memory.ErrNotFound)
	}

	available := make(map[string]bridge.Candidate)
	for _, c := range an.Result.Candidates() {
		available[c.ID] = c
	}
	edits := make(map[string]CandidateEdit, len(req.Edits))
	for _, e := range req.Edits {
		edits[e.CandidateID] = e
	}

	var (
		chosen []bridge.Candidate
		seen   = make(map[string]bool)
	)
	for _, id := range req.AcceptedIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		c, ok := available[id]
		if !ok {
			return nil, fmt.Errorf("candidate %s: %w", id, memory.ErrNotFound)
		}
		if e, ok := edits[id]; ok {
			if e.Text != "" {
				c.Text = strings.TrimSpace(e.Text)
			}
			if e.EstimatedEffort != nil {
				c.EstimatedEffort = *e.EstimatedEffort
			}
		}
		chosen = append(chosen, c)
	}

	batch, newTasks := insertions(userID, chosen)

	existing, err := a.ctx.Store.ListTasks(userID)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if a.ctx.Policy != nil {
		d, err := a.ctx.Policy.EvaluateAcceptance(ctx, acceptInput(userID, an.ID, len(task.Active(existing)), chosen, newTasks, req.Edits))
		if err != nil {
			return nil, fmt.Errorf("evaluate policy: %w", err)
		}
		if !d.IsAllowed() {
			metrics.GraphMutations.WithLabelValues("denied").Inc()
			return nil, &PolicyError{Violations: d.Violations}
		}
		warnings = d.Warnings
	}

	ids := make([]string, len(chosen))
	for i, c := range chosen {
		ids[i] = c.ID
	}
	plan, err := a.ctx.Store.AcceptCandidates(userID, an.ID, ids, func(existing []task.Task, edges []task.Edge) (*task.MergePlan, error) {
		return task.PlanMerge(existing, edges, batch)
	})
	if err != nil {
		metrics.GraphMutations.WithLabelValues(mutationResult(err)).Inc()
		slog.Warn("acceptance rejected", "analysis_id", an.ID, "user_id", userID, "error", err)
		return nil, err
	}
	metrics.GraphMutations.WithLabelValues("committed").Inc()
	for _, c := range chosen {
		metrics.Candidates.WithLabelValues(string(c.Lane), "accepted").Inc()
	}

	a.ctx.track(telemetry.EventCandidatesAccepted, telemetry.Properties{
		"accepted": len(chosen),
		"edited":   len(req.Edits),
	})
	return &AcceptResult{
		Success:     true,
		InsertedIDs: plan.InsertedIDs(),
		Order:       plan.Order,
		Warnings:    warnings,
	}, nil
}

// insertions groups candidates into insertion chains: one chain per gap,
// in first-accepted order, and one chain per semantic candidate.
func insertions(userID string, chosen []bridge.Candidate) ([]task.Insertion, map[string]task.Task) {
	var (
		batch []task.Insertion
		byGap = make(map[int]int)
		tasks = make(map[string]task.Task, len(chosen))
	)
	for _, c := range chosen {
		t := c.ToTask(userID)
		tasks[c.ID] = t
		if c.Lane == bridge.LaneStructural {
			if i, ok := byGap[c.GapIndex]; ok {
				batch[i].Tasks = append(batch[i].Tasks, t)
				continue
			}
			byGap[c.GapIndex] = len(batch)
		}
		batch = append(batch, task.Insertion{
			PredecessorID: c.PredecessorID,
			SuccessorID:   c.SuccessorID,
			Tasks:         []task.Task{t},
		})
	}
	return batch, tasks
}

func acceptInput(userID, analysisID string, existing int, chosen []bridge.Candidate, tasks map[string]task.Task, edits []CandidateEdit) policy.AcceptInput {
	in := policy.AcceptInput{
		UserID:        userID,
		AnalysisID:    analysisID,
		ExistingTasks: existing,
	}
	for _, c := range chosen {
		t := tasks[c.ID]
		in.NewTasks = append(in.NewTasks, policy.TaskInput{
			ID:              t.ID,
			Text:            t.Text,
			EstimatedEffort: t.EstimatedEffort,
			CognitionLevel:  string(t.CognitionLevel),
			Lane:            string(c.Lane),
			PredecessorID:   c.PredecessorID,
			SuccessorID:     c.SuccessorID,
		})
	}
	for _, e := range edits {
		// Effort-only edits keep the candidate text.
		if e.Text == "" {
			continue
		}
		in.Edits = append(in.Edits, policy.EditInput{CandidateID: e.CandidateID, Text: e.Text})
	}
	return in
}
