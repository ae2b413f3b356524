package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/task"
)

// Handlers runs each tool against the app layer for one user.
type Handlers struct {
	tasks      *app.TaskApp
	reasoning  *app.ReasoningApp
	bridge     *app.BridgeApp
	reflection *app.ReflectionApp
	userID     string
}

// NewHandlers wires tool handlers over an app context.
func NewHandlers(appCtx *app.Context, userID string) *Handlers {
	return &Handlers{
		tasks:      app.NewTaskApp(appCtx),
		reasoning:  app.NewReasoningApp(appCtx),
		bridge:     app.NewBridgeApp(appCtx),
		reflection: app.NewReflectionApp(appCtx),
		userID:     userID,
	}
}

// StartReasoning runs a reasoning session.
func (h *Handlers) StartReasoning(ctx context.Context, p StartReasoningParams) *ToolResult {
	res, err := h.reasoning.Start(ctx, h.userID, app.StartRequest{GoalText: p.GoalText, TaskIDs: p.TaskIDs})
	if err != nil {
		return failure(err)
	}
	return &ToolResult{Content: FormatStart(res, h.names())}
}

// GetSession returns one session, or the current one.
func (h *Handlers) GetSession(_ context.Context, p GetSessionParams) *ToolResult {
	id := strings.TrimSpace(p.SessionID)
	var (
		res any
		err error
	)
	if id == "" {
		res, err = h.reasoning.Current(h.userID)
	} else {
		res, err = h.reasoning.Session(h.userID, id)
	}
	if err != nil {
		return failure(err)
	}
	return &ToolResult{Content: FormatJSON("Session", res)}
}

// DetectGaps scans a completed session and proposes candidates.
func (h *Handlers) DetectGaps(ctx context.Context, p DetectGapsParams) *ToolResult {
	id := strings.TrimSpace(p.SessionID)
	if id == "" {
		cur, err := h.reasoning.Current(h.userID)
		if err != nil {
			return failure(err)
		}
		id = cur.ID
	}
	res, err := h.bridge.DetectGaps(ctx, h.userID, id)
	if err != nil {
		return failure(err)
	}
	return &ToolResult{Content: FormatGaps(res, h.names())}
}

// AcceptCandidates inserts chosen candidates into the graph.
func (h *Handlers) AcceptCandidates(ctx context.Context, p AcceptCandidatesParams) *ToolResult {
	edits := make([]app.CandidateEdit, len(p.Edits))
	for i, e := range p.Edits {
		edits[i] = app.CandidateEdit(e)
	}
	res, err := h.bridge.Accept(ctx, h.userID, app.AcceptRequest{
		AnalysisID:  p.AnalysisID,
		AcceptedIDs: p.AcceptedIDs,
		Edits:       edits,
	})
	if err != nil {
		return failure(err)
	}
	return &ToolResult{Content: FormatAccept(res, h.names())}
}

// SubmitReflection records a reflection and applies its effects.
func (h *Handlers) SubmitReflection(ctx context.Context, p SubmitReflectionParams) *ToolResult {
	res, err := h.reflection.Submit(ctx, h.userID, app.SubmitReflectionRequest{Text: p.Text, TaskIDs: p.TaskIDs})
	if err != nil {
		return failure(err)
	}
	return &ToolResult{Content: FormatReflection(res, h.names())}
}

// ToggleReflection activates or deactivates a reflection.
func (h *Handlers) ToggleReflection(ctx context.Context, p ToggleReflectionParams) *ToolResult {
	if strings.TrimSpace(p.ReflectionID) == "" {
		return failure(fmt.Errorf("%w: reflection_id is required", app.ErrInvalidRequest))
	}
	res, err := h.reflection.Toggle(ctx, h.userID, p.ReflectionID, p.Active)
	if err != nil {
		return failure(err)
	}
	return &ToolResult{Content: FormatToggle(res, h.names())}
}

// ListTasks lists the user's task graph.
func (h *Handlers) ListTasks(_ context.Context, p ListTasksParams) *ToolResult {
	list, err := h.tasks.List(h.userID, p.IncludeArchived)
	if err != nil {
		return failure(err)
	}
	return &ToolResult{Content: FormatTasks(list)}
}

// names resolves ids for presentation; a failed lookup only costs labels.
func (h *Handlers) names() map[string]string {
	list, err := h.tasks.List(h.userID, true)
	if err != nil {
		slog.Warn("mcp: task lookup failed", "error", err)
		return nil
	}
	return taskNames(list.Tasks)
}

func taskNames(tasks []task.Task) map[string]string {
	out := make(map[string]string, len(tasks))
	for _, t := range tasks {
		out[t.ID] = t.Text
	}
	return out
}

func failure(err error) *ToolResult {
	body := app.Describe(err)
	if body.Kind == app.KindInternal {
		slog.Error("mcp tool failed", "error", err)
	}
	return &ToolResult{Error: FormatError(body), Code: body.Code}
}
