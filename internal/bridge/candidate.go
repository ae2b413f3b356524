// Package bridge proposes tasks that fill gaps in a plan and filters out
// proposals that repeat existing work.
package bridge

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/josephgoksu/Wayline/internal/task"
	"github.com/josephgoksu/Wayline/internal/utils"
)

// Lane is the provenance of a candidate.
type Lane string

const (
	LaneSemantic   Lane = "semantic"   // broad: goal coverage and quality gaps
	LaneStructural Lane = "structural" // narrow: detected sequence gaps
)

// Candidate is a proposed task awaiting user approval.
type Candidate struct {
	ID              string              `json:"id"`
	Lane            Lane                `json:"source_tag"`
	Text            string              `json:"text"`
	EstimatedEffort float64             `json:"estimated_effort"`
	CognitionLevel  task.CognitionLevel `json:"cognition_level"`
	Confidence      float64             `json:"confidence"`
	Reasoning       string              `json:"reasoning"`
	PredecessorID   string              `json:"predecessor_id,omitempty"`
	SuccessorID     string              `json:"successor_id,omitempty"`
	GapIndex        int                 `json:"gap_index"` // -1 for semantic-lane candidates
	Embedding       []float32           `json:"-"`
	DedupHash       string              `json:"dedup_hash"`
}

// ToTask converts an accepted candidate into a task node.
func (c Candidate) ToTask(userID string) task.Task {
	return task.Task{
		ID:              task.NewID(),
		UserID:          userID,
		Text:            c.Text,
		EstimatedEffort: c.EstimatedEffort,
		CognitionLevel:  c.CognitionLevel,
		Confidence:      c.Confidence,
		Source:          task.SourceAIGenerated,
	}
}

// DedupHash fingerprints candidate text after case folding.
func DedupHash(text string) string {
	sum := sha256.Sum256([]byte(utils.Fold(text)))
	return hex.EncodeToString(sum[:12])
}

func newCandidate(lane Lane, p proposal, gapIndex int) Candidate {
	return Candidate{
		ID:              "cand-" + uuid.New().String()[:8],
		Lane:            lane,
		Text:            p.Text,
		EstimatedEffort: p.EstimatedEffort,
		CognitionLevel:  task.CognitionLevel(p.CognitionLevel),
		Confidence:      p.Confidence,
		Reasoning:       p.Reasoning,
		GapIndex:        gapIndex,
		DedupHash:       DedupHash(p.Text),
	}
}

// Dropped records a suppressed candidate and why.
type Dropped struct {
	Candidate  Candidate `json:"candidate"`
	Reason     string    `json:"reason"`
	MatchedID  string    `json:"matched_id,omitempty"`
	Similarity float64   `json:"similarity"`
}

// Drop reasons.
const (
	ReasonExistingTask = "near_duplicate_of_existing_task"
	ReasonCrossLane    = "near_duplicate_of_semantic_candidate"
	ReasonSameBatch    = "duplicate_in_batch"
)
