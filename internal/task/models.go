package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// CognitionLevel describes how much focus a task demands.
type CognitionLevel string

const (
	CognitionLow    CognitionLevel = "low"
	CognitionMedium CognitionLevel = "medium"
	CognitionHigh   CognitionLevel = "high"
)

// Source records how a task entered the graph.
type Source string

const (
	SourceExtracted   Source = "extracted"    // Pulled out of a document
	SourceManual      Source = "manual"       // Typed in by the user
	SourceAIGenerated Source = "ai_generated" // Accepted bridging candidate
)

// Relationship is the kind of a dependency edge.
type Relationship string

const (
	RelPrerequisite Relationship = "prerequisite" // From depends on To
	RelBlocks       Relationship = "blocks"       // From blocks To
	RelRelated      Relationship = "related"      // No ordering constraint
)

// DetectionMethod records where an edge came from.
type DetectionMethod string

const (
	DetectionInferred DetectionMethod = "inferred"
	DetectionStored   DetectionMethod = "stored"
)

// Bounds for task fields.
const (
	MinTextLength = 10
	MaxTextLength = 500
	MinEffort     = 0.25 // hours
	MaxEffort     = 160  // hours
)

// ErrInvalidTask is wrapped by every validation failure in this package.
var ErrInvalidTask = errors.New("invalid task")

// Task is one node of a user's task graph.
type Task struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Text            string         `json:"text"`
	EstimatedEffort float64        `json:"estimated_effort"`
	CognitionLevel  CognitionLevel `json:"cognition_level"`
	IsManual        bool           `json:"is_manual"`
	Confidence      float64        `json:"confidence"`
	QualityScore    *float64       `json:"quality_score,omitempty"`
	Source          Source         `json:"source"`
	Archived        bool           `json:"archived"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewID returns a short task identifier.
func NewID() string {
	return "task-" + uuid.New().String()[:8]
}

// Validate checks field bounds. It does not look at the graph.
func (t *Task) Validate() error {
	text := strings.TrimSpace(t.Text)
	if n := utf8.RuneCountInString(text); n < MinTextLength || n > MaxTextLength {
		return fmt.Errorf("%w: text must be %d-%d characters, got %d", ErrInvalidTask, MinTextLength, MaxTextLength, n)
	}
	if t.EstimatedEffort < MinEffort || t.EstimatedEffort > MaxEffort {
		return fmt.Errorf("%w: estimated_effort %.2f outside [%.2f, %.0f]", ErrInvalidTask, t.EstimatedEffort, MinEffort, float64(MaxEffort))
	}
	if !t.CognitionLevel.Valid() {
		return fmt.Errorf("%w: cognition_level %q", ErrInvalidTask, t.CognitionLevel)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f outside [0, 1]", ErrInvalidTask, t.Confidence)
	}
	if t.QualityScore != nil && (*t.QualityScore < 0 || *t.QualityScore > 1) {
		return fmt.Errorf("%w: quality_score %.2f outside [0, 1]", ErrInvalidTask, *t.QualityScore)
	}
	switch t.Source {
	case SourceExtracted, SourceManual, SourceAIGenerated:
	default:
		return fmt.Errorf("%w: source %q", ErrInvalidTask, t.Source)
	}
	return nil
}

// Normalize trims text and fills defaults for a freshly created task.
func (t *Task) Normalize() {
	t.Text = strings.TrimSpace(t.Text)
	if t.CognitionLevel == "" {
		t.CognitionLevel = CognitionMedium
	}
	if t.Source == "" {
		t.Source = SourceManual
	}
	if t.Source == SourceManual {
		t.IsManual = true
	}
	if t.Confidence == 0 && t.IsManual {
		t.Confidence = 1
	}
}

// Valid reports whether c is a known level.
func (c CognitionLevel) Valid() bool {
	switch c {
	case CognitionLow, CognitionMedium, CognitionHigh:
		return true
	}
	return false
}

// Edge is a directed dependency between two tasks.
type Edge struct {
	FromID          string          `json:"from_id"`
	ToID            string          `json:"to_id"`
	Relationship    Relationship    `json:"relationship"`
	Confidence      float64         `json:"confidence"`
	DetectionMethod DetectionMethod `json:"detection_method"`
}

// Validate checks the edge's own fields.
func (e Edge) Validate() error {
	if e.FromID == "" || e.ToID == "" {
		return fmt.Errorf("%w: edge endpoints required", ErrInvalidTask)
	}
	if e.FromID == e.ToID {
		return fmt.Errorf("%w: edge %s cannot point at itself", ErrInvalidTask, e.FromID)
	}
	switch e.Relationship {
	case RelPrerequisite, RelBlocks, RelRelated:
	default:
		return fmt.Errorf("%w: relationship %q", ErrInvalidTask, e.Relationship)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("%w: edge confidence %.2f outside [0, 1]", ErrInvalidTask, e.Confidence)
	}
	return nil
}

// Orders reports whether the edge constrains execution order.
func (e Edge) Orders() bool {
	return e.Relationship == RelPrerequisite || e.Relationship == RelBlocks
}

// Dependency returns the edge as (dependent, prerequisite).
// A blocks edge reads "from blocks to", so the dependent is To.
func (e Edge) Dependency() (dependent, prerequisite string) {
	if e.Relationship == RelBlocks {
		return e.ToID, e.FromID
	}
	return e.FromID, e.ToID
}

// Joins reports whether the edge orders a and b in either direction.
func (e Edge) Joins(a, b string) bool {
	if !e.Orders() {
		return false
	}
	return (e.FromID == a && e.ToID == b) || (e.FromID == b && e.ToID == a)
}

// Key identifies an edge by endpoints and relationship.
func (e Edge) Key() string {
	return e.FromID + "|" + e.ToID + "|" + string(e.Relationship)
}

// DependsOn builds a stored prerequisite edge: dependent depends on prerequisite.
func DependsOn(dependent, prerequisite string, confidence float64) Edge {
	return Edge{
		FromID:          dependent,
		ToID:            prerequisite,
		Relationship:    RelPrerequisite,
		Confidence:      confidence,
		DetectionMethod: DetectionStored,
	}
}

// Active filters out archived tasks.
func Active(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Archived {
			out = append(out, t)
		}
	}
	return out
}

// IDs returns the task ids in input order.
func IDs(tasks []Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

// Index maps task id to task.
func Index(tasks []Task) map[string]Task {
	m := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	return m
}
