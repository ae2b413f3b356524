// Package reasoning runs the bounded tool-selecting loop that turns a goal
// and a task set into a prioritized plan with execution waves and a trace.
package reasoning

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/Wayline/internal/task"
)

// ToolName identifies one analysis tool. The set is closed.
type ToolName string

const (
	ToolGraphQuery           ToolName = "graph_query"
	ToolSemanticSearch       ToolName = "semantic_search"
	ToolDocumentContext      ToolName = "document_context"
	ToolDependencyInference  ToolName = "dependency_inference"
	ToolSimilarityClustering ToolName = "similarity_clustering"
	ToolGapScan              ToolName = "gap_scan"
)

// AllTools lists every tool in default execution order.
var AllTools = []ToolName{
	ToolGraphQuery,
	ToolSemanticSearch,
	ToolDocumentContext,
	ToolDependencyInference,
	ToolSimilarityClustering,
	ToolGapScan,
}

// Valid reports whether t is a known tool.
func (t ToolName) Valid() bool {
	_, ok := dispatch[t]
	return ok
}

// Status of a session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StepStatus of a trace step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// MaxSteps is the hard ceiling on trace length.
const MaxSteps = 10

// Step is one entry of the trace. Tool is empty for the synthesis step.
type Step struct {
	Number     int             `json:"step_number" yaml:"step_number"`
	Tool       ToolName        `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
	Input      json.RawMessage `json:"tool_input,omitempty" yaml:"-"`
	Output     json.RawMessage `json:"tool_output,omitempty" yaml:"-"`
	Thought    string          `json:"thought,omitempty" yaml:"thought,omitempty"`
	DurationMS int64           `json:"duration_ms" yaml:"duration_ms"`
	Status     StepStatus      `json:"status" yaml:"status"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// Plan is the ordered result of a session.
type Plan struct {
	Order      []string           `json:"order" yaml:"order"`
	Waves      [][]string         `json:"waves" yaml:"waves"`
	Edges      []task.Edge        `json:"dependencies" yaml:"dependencies"`
	Confidence map[string]float64 `json:"confidence_scores" yaml:"confidence_scores"`
}

// Metadata summarizes how a session ran.
type Metadata struct {
	Steps          int              `json:"steps" yaml:"steps"`
	DurationMS     int64            `json:"duration_ms" yaml:"duration_ms"`
	ToolCalls      map[ToolName]int `json:"tool_calls" yaml:"tool_calls"`
	Errors         int              `json:"errors" yaml:"errors"`
	TimedOut       bool             `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
	StepCapReached bool             `json:"step_cap_reached,omitempty" yaml:"step_cap_reached,omitempty"`
	Incomplete     bool             `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
	Coverage       float64          `json:"coverage" yaml:"coverage"`
	GapCount       int              `json:"gap_count" yaml:"gap_count"`
	Degraded       bool             `json:"degraded" yaml:"degraded"`
	Warnings       []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Session is one reasoning run. A user has at most one.
type Session struct {
	ID          string     `json:"session_id" yaml:"session_id"`
	UserID      string     `json:"user_id" yaml:"user_id"`
	Goal        string     `json:"goal" yaml:"goal"`
	TaskIDs     []string   `json:"task_ids" yaml:"task_ids"`
	Status      Status     `json:"status" yaml:"status"`
	Plan        *Plan      `json:"plan,omitempty" yaml:"plan,omitempty"`
	Metadata    Metadata   `json:"metadata" yaml:"metadata"`
	Trace       []Step     `json:"trace" yaml:"trace"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// NewSession returns a running session with a fresh id.
func NewSession(userID, goal string, taskIDs []string) *Session {
	return &Session{
		ID:        "sess-" + uuid.New().String()[:8],
		UserID:    userID,
		Goal:      goal,
		TaskIDs:   taskIDs,
		Status:    StatusRunning,
		Metadata:  Metadata{ToolCalls: map[ToolName]int{}},
		CreatedAt: time.Now().UTC(),
	}
}

// TraceSummary is the compact view returned when a session starts.
type TraceSummary struct {
	Steps      int              `json:"steps"`
	ToolCalls  map[ToolName]int `json:"tool_calls"`
	Errors     int              `json:"errors"`
	DurationMS int64            `json:"duration_ms"`
	Incomplete bool             `json:"incomplete"`
}

// Summary condenses the trace.
func (s *Session) Summary() TraceSummary {
	return TraceSummary{
		Steps:      len(s.Trace),
		ToolCalls:  s.Metadata.ToolCalls,
		Errors:     s.Metadata.Errors,
		DurationMS: s.Metadata.DurationMS,
		Incomplete: s.Metadata.Incomplete,
	}
}
