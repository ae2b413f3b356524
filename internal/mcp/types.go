// Package mcp exposes the wayline use cases as Model Context Protocol tools
// over stdio.
package mcp

// Tool names.
const (
	ToolStartReasoning   = "start_reasoning"
	ToolGetSession       = "get_session"
	ToolDetectGaps       = "detect_gaps"
	ToolAcceptCandidates = "accept_candidates"
	ToolSubmitReflection = "submit_reflection"
	ToolToggleReflection = "toggle_reflection"
	ToolListTasks        = "list_tasks"
)

// ToolNames lists every registered tool in registration order.
func ToolNames() []string {
	return []string{
		ToolStartReasoning, ToolGetSession, ToolDetectGaps, ToolAcceptCandidates,
		ToolSubmitReflection, ToolToggleReflection, ToolListTasks,
	}
}

// StartReasoningParams are the arguments of start_reasoning.
type StartReasoningParams struct {
	// GoalText falls back to the stored goal when empty.
	GoalText string   `json:"goal_text,omitempty"`
	TaskIDs  []string `json:"task_ids,omitempty"`
}

// GetSessionParams are the arguments of get_session. An empty id returns
// the current session.
type GetSessionParams struct {
	SessionID string `json:"session_id,omitempty"`
}

// DetectGapsParams are the arguments of detect_gaps.
type DetectGapsParams struct {
	SessionID string `json:"session_id,omitempty"`
}

// CandidateEdit adjusts a candidate before it is inserted.
type CandidateEdit struct {
	CandidateID     string   `json:"candidate_id"`
	Text            string   `json:"text,omitempty"`
	EstimatedEffort *float64 `json:"estimated_effort,omitempty"`
}

// AcceptCandidatesParams are the arguments of accept_candidates.
type AcceptCandidatesParams struct {
	AnalysisID  string          `json:"analysis_id"`
	AcceptedIDs []string        `json:"accepted_ids"`
	Edits       []CandidateEdit `json:"edits,omitempty"`
}

// SubmitReflectionParams are the arguments of submit_reflection.
type SubmitReflectionParams struct {
	Text    string   `json:"text"`
	TaskIDs []string `json:"task_ids,omitempty"`
}

// ToggleReflectionParams are the arguments of toggle_reflection.
type ToggleReflectionParams struct {
	ReflectionID string `json:"reflection_id"`
	Active       bool   `json:"active"`
}

// ListTasksParams are the arguments of list_tasks.
type ListTasksParams struct {
	IncludeArchived bool `json:"include_archived,omitempty"`
}

// ToolResult is a handler outcome before it is wrapped for the SDK.
// Error is set for failures; Code carries the error taxonomy code.
type ToolResult struct {
	Content string
	Error   string
	Code    string
}
