package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/josephgoksu/Wayline/internal/gaps"
	"github.com/josephgoksu/Wayline/internal/memory"
	"github.com/josephgoksu/Wayline/internal/reasoning"
	"github.com/josephgoksu/Wayline/internal/task"
	"github.com/josephgoksu/Wayline/internal/telemetry"
)

// StartRequest starts a reasoning session. An empty GoalText falls back to
// the stored goal; empty TaskIDs selects every active task.
type StartRequest struct {
	GoalText string   `json:"goal_text"`
	TaskIDs  []string `json:"task_ids"`
}

// StartResult is the response to a started session.
type StartResult struct {
	SessionID        string                 `json:"session_id"`
	Status           reasoning.Status       `json:"status"`
	Plan             []string               `json:"plan,omitempty"`
	Waves            [][]string             `json:"waves,omitempty"`
	Dependencies     []task.Edge            `json:"dependencies,omitempty"`
	ConfidenceScores map[string]float64     `json:"confidence_scores,omitempty"`
	Coverage         float64                `json:"coverage"`
	TraceSummary     reasoning.TraceSummary `json:"trace_summary"`
	Degraded         bool                   `json:"degraded"`
	Warnings         []string               `json:"warnings,omitempty"`
	Error            string                 `json:"error,omitempty"`
}

// ReasoningApp runs and fetches reasoning sessions.
// This is THE implementation - CLI, HTTP and MCP all call these methods.
type ReasoningApp struct {
	ctx *Context

	// selector overrides the configured tool selector; tests only.
	selector reasoning.Selector
}

// NewReasoningApp creates a new reasoning application service.
func NewReasoningApp(ctx *Context) *ReasoningApp {
	return &ReasoningApp{ctx: ctx}
}

// Start runs a session to completion and replaces the user's previous
// session with it. A failed session is stored too, so its trace can be
// inspected.
func (a *ReasoningApp) Start(ctx context.Context, userID string, req StartRequest) (*StartResult, error) {
	goal := strings.TrimSpace(req.GoalText)
	if goal == "" {
		stored, err := a.ctx.Store.GetGoal(userID)
		if err != nil && !errors.Is(err, memory.ErrNotFound) {
			return nil, err
		}
		goal = stored
	}
	if goal == "" {
		return nil, ErrNoActiveGoal
	}

	tasks, warnings, err := a.selectTasks(userID, req.TaskIDs)
	if err != nil {
		return nil, err
	}
	effects, err := a.ctx.Store.ListTaskEffects(userID)
	if err != nil {
		return nil, err
	}

	o, err := reasoning.NewOrchestrator(ctx, reasoning.Deps{
		Graph:    a.ctx.Store,
		Docs:     a.ctx.Store,
		Scorer:   a.ctx.Scorer,
		Text:     a.ctx.Text,
		Detector: gaps.NewDetector(a.ctx.Cfg.Gaps),
	}, a.ctx.Cfg.Reasoning)
	if err != nil {
		return nil, err
	}
	if a.selector != nil {
		o.WithSelector(a.selector)
	}

	sess := o.Run(ctx, reasoning.Request{
		UserID:  userID,
		Goal:    goal,
		Tasks:   tasks,
		Effects: effects,
	})
	sess.Metadata.Warnings = append(warnings, sess.Metadata.Warnings...)

	if err := a.ctx.Store.ReplaceSession(sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	slog.Debug("session stored", "session_id", sess.ID, "user_id", userID)

	a.ctx.track(telemetry.EventSessionCompleted, telemetry.Properties{
		"status":     string(sess.Status),
		"steps":      len(sess.Trace),
		"tasks":      len(tasks),
		"incomplete": sess.Metadata.Incomplete,
		"degraded":   sess.Metadata.Degraded,
	})
	return startResult(sess), nil
}

// selectTasks resolves the session's task set. Explicit ids over the cap
// are rejected; an implicit selection is truncated to the most recently
// updated tasks with a warning.
func (a *ReasoningApp) selectTasks(userID string, ids []string) ([]task.Task, []string, error) {
	limit := a.ctx.Cfg.Reasoning.MaxTasks
	if limit <= 0 {
		limit = reasoning.DefaultConfig().MaxTasks
	}
	all, err := a.ctx.Store.ListTasks(userID)
	if err != nil {
		return nil, nil, err
	}

	if len(ids) > 0 {
		if len(ids) > limit {
			return nil, nil, fmt.Errorf("%w: %d tasks requested, limit is %d", ErrTaskSetTooLarge, len(ids), limit)
		}
		index := task.Index(all)
		out := make([]task.Task, 0, len(ids))
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			t, ok := index[id]
			if !ok {
				return nil, nil, fmt.Errorf("task %s: %w", id, memory.ErrNotFound)
			}
			if t.Archived {
				return nil, nil, fmt.Errorf("%w: task %s is archived", ErrInvalidRequest, id)
			}
			out = append(out, t)
		}
		return out, nil, nil
	}

	active := task.Active(all)
	if len(active) <= limit {
		return active, nil, nil
	}
	// Newest first, so equal timestamps still favour later tasks.
	slices.Reverse(active)
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].UpdatedAt.After(active[j].UpdatedAt)
	})
	warning := fmt.Sprintf("task set truncated to the %d most recently updated of %d active tasks", limit, len(active))
	slog.Warn("task set truncated", "user_id", userID, "active", len(active), "limit", limit)
	return active[:limit], []string{warning}, nil
}

// Session returns a stored session. Sessions of other users, superseded
// sessions and expired sessions are all not found.
func (a *ReasoningApp) Session(userID, sessionID string) (*reasoning.Session, error) {
	sess, err := a.ctx.Store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, fmt.Errorf("session %s: %w", sessionID, memory.ErrNotFound)
	}
	return sess, nil
}

// Current returns the user's live session.
func (a *ReasoningApp) Current(userID string) (*reasoning.Session, error) {
	return a.ctx.Store.CurrentSession(userID)
}

func startResult(sess *reasoning.Session) *StartResult {
	res := &StartResult{
		SessionID:    sess.ID,
		Status:       sess.Status,
		Coverage:     sess.Metadata.Coverage,
		TraceSummary: sess.Summary(),
		Degraded:     sess.Metadata.Degraded,
		Warnings:     sess.Metadata.Warnings,
		Error:        sess.Error,
	}
	if p := sess.Plan; p != nil {
		res.Plan = p.Order
		res.Waves = p.Waves
		res.Dependencies = p.Edges
		res.ConfidenceScores = p.Confidence
	}
	return res
}
