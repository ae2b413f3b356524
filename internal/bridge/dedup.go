package bridge

import (
	"context"

	"github.com/josephgoksu/Wayline/internal/knowledge"
	"github.com/josephgoksu/Wayline/internal/task"
)

// Default similarity thresholds.
const (
	DefaultExistingThreshold  = 0.90
	DefaultCrossLaneThreshold = 0.85
)

// simTolerance absorbs float32 rounding in cosine scores, so a vector at
// exactly the threshold counts as reaching it.
const simTolerance = 1e-6

func reaches(sim, threshold float64) bool {
	return sim >= threshold-simTolerance
}

// Deduplicator suppresses candidates that repeat existing tasks or the
// broad lane's proposals.
type Deduplicator struct {
	scorer             *knowledge.Scorer
	existingThreshold  float64
	crossLaneThreshold float64
}

// NewDeduplicator creates a Deduplicator with default thresholds.
func NewDeduplicator(scorer *knowledge.Scorer) *Deduplicator {
	return &Deduplicator{
		scorer:             scorer,
		existingThreshold:  DefaultExistingThreshold,
		crossLaneThreshold: DefaultCrossLaneThreshold,
	}
}

// SetThresholds overrides the thresholds. Values outside (0, 1] are ignored.
func (d *Deduplicator) SetThresholds(existing, crossLane float64) {
	if existing > 0 && existing <= 1 {
		d.existingThreshold = existing
	}
	if crossLane > 0 && crossLane <= 1 {
		d.crossLaneThreshold = crossLane
	}
}

// Embed attaches vectors to candidates. It reports false when the vector
// service is unavailable and candidates stay without embeddings.
func (d *Deduplicator) Embed(ctx context.Context, cands []Candidate) bool {
	texts := make([]string, len(cands))
	for i, c := range cands {
		texts[i] = c.Text
	}
	vecs, ok := d.scorer.Vectors(ctx, texts)
	if !ok {
		return false
	}
	for i := range cands {
		cands[i].Embedding = vecs[i]
	}
	return true
}

// AgainstExisting drops candidates whose similarity to any existing task
// reaches the existing threshold, and repeated texts within the batch.
func (d *Deduplicator) AgainstExisting(ctx context.Context, existing []task.Task, cands []Candidate) (kept []Candidate, dropped []Dropped, degraded bool) {
	seen := make(map[string]bool, len(cands))
	var unique []Candidate
	for _, c := range cands {
		if seen[c.DedupHash] {
			dropped = append(dropped, Dropped{Candidate: c, Reason: ReasonSameBatch, Similarity: 1})
			continue
		}
		seen[c.DedupHash] = true
		unique = append(unique, c)
	}
	if len(existing) == 0 {
		return unique, dropped, false
	}

	texts := make([]string, len(existing))
	for i, t := range existing {
		texts[i] = t.Text
	}
	sims, degraded := d.scorer.Matrix(ctx, candidateTexts(unique), texts)
	best, idx := knowledge.MaxPerRow(sims)
	for i, c := range unique {
		if idx[i] >= 0 && reaches(best[i], d.existingThreshold) {
			dropped = append(dropped, Dropped{Candidate: c, Reason: ReasonExistingTask, MatchedID: existing[idx[i]].ID, Similarity: best[i]})
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped, degraded
}

// CrossLane drops narrow-lane candidates whose similarity to any broad-lane
// candidate of the same batch reaches the cross-lane threshold.
func (d *Deduplicator) CrossLane(ctx context.Context, broad, narrow []Candidate) (kept []Candidate, dropped []Dropped, degraded bool) {
	if len(broad) == 0 || len(narrow) == 0 {
		return narrow, nil, false
	}
	sims, degraded := d.scorer.Matrix(ctx, candidateTexts(narrow), candidateTexts(broad))
	best, idx := knowledge.MaxPerRow(sims)
	for i, c := range narrow {
		if idx[i] >= 0 && reaches(best[i], d.crossLaneThreshold) {
			dropped = append(dropped, Dropped{Candidate: c, Reason: ReasonCrossLane, MatchedID: broad[idx[i]].ID, Similarity: best[i]})
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped, degraded
}

func candidateTexts(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Text
	}
	return out
}
