package knowledge

import (
	"context"
	"log/slog"

	"github.com/josephgoksu/Wayline/internal/utils"
)

// Scorer compares texts by embedding, falling back to token overlap when
// the vector service is unavailable.
type Scorer struct {
	embedder *Embedder
}

// NewScorer creates a Scorer. A nil embedder means lexical scoring only.
func NewScorer(embedder *Embedder) *Scorer {
	return &Scorer{embedder: embedder}
}

// Matrix returns sims[i][j] = similarity(left[i], right[j]) in [0, 1].
// degraded is true when the lexical fallback was used.
func (s *Scorer) Matrix(ctx context.Context, left, right []string) (sims [][]float64, degraded bool) {
	sims = make([][]float64, len(left))
	for i := range sims {
		sims[i] = make([]float64, len(right))
	}
	if len(left) == 0 || len(right) == 0 {
		return sims, false
	}

	if s.embedder != nil {
		all := append(append([]string{}, left...), right...)
		vecs, err := s.embedder.Embed(ctx, all)
		if err == nil {
			lv, rv := vecs[:len(left)], vecs[len(left):]
			for i := range left {
				for j := range right {
					sims[i][j] = clamp01(float64(CosineSimilarity(lv[i], rv[j])))
				}
			}
			return sims, false
		}
		slog.Warn("vector service failed, using lexical similarity", "error", err)
	}

	for i := range left {
		for j := range right {
			sims[i][j] = utils.Jaccard(left[i], right[j])
		}
	}
	return sims, true
}

// Vectors exposes the underlying embeddings; ok is false on fallback.
func (s *Scorer) Vectors(ctx context.Context, texts []string) ([][]float32, bool) {
	if s.embedder == nil || len(texts) == 0 {
		return nil, false
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		slog.Warn("vector service failed", "error", err)
		return nil, false
	}
	return vecs, true
}

// MaxPerRow returns, for each row, the highest value and its column (-1 if empty).
func MaxPerRow(sims [][]float64) ([]float64, []int) {
	best := make([]float64, len(sims))
	idx := make([]int, len(sims))
	for i, row := range sims {
		idx[i] = -1
		for j, v := range row {
			if idx[i] == -1 || v > best[i] {
				best[i], idx[i] = v, j
			}
		}
	}
	return best, idx
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
