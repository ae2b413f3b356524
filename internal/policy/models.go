// Package policy guards candidate acceptance with Rego rules evaluated
// locally by OPA.
package policy

import (
	"time"
)

// Decision is the outcome of evaluating the policies against one input.
type Decision struct {
	DecisionID  string    `json:"decision_id"`
	PolicyPath  string    `json:"policy_path"`
	Result      string    `json:"result"`
	Violations  []string  `json:"violations,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Result values.
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// IsAllowed reports whether no deny rule fired.
func (d *Decision) IsAllowed() bool {
	return d.Result == ResultAllow
}

// AcceptInput is the `input` document seen by acceptance policies.
type AcceptInput struct {
	UserID        string      `json:"user_id"`
	AnalysisID    string      `json:"analysis_id"`
	ExistingTasks int         `json:"existing_tasks"`
	NewTasks      []TaskInput `json:"new_tasks"`
	Edits         []EditInput `json:"edits"`
}

// TaskInput describes one task the batch would add.
type TaskInput struct {
	ID              string  `json:"id"`
	Text            string  `json:"text"`
	EstimatedEffort float64 `json:"estimated_effort"`
	CognitionLevel  string  `json:"cognition_level"`
	Lane            string  `json:"lane"`
	PredecessorID   string  `json:"predecessor_id,omitempty"`
	SuccessorID     string  `json:"successor_id,omitempty"`
}

// EditInput is a user edit applied to a candidate before acceptance.
type EditInput struct {
	CandidateID string `json:"candidate_id"`
	Text        string `json:"text"`
}
