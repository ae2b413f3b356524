/*
Package knowledge - embeddings, similarity and goal coverage for task text.
*/
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/utils"
)

// Cache persists vectors between runs, keyed by text hash.
type Cache interface {
	GetEmbeddings(keys []string) (map[string][]float32, error)
	PutEmbeddings(vectors map[string][]float32) error
}

// Embedder fronts the vector service with an in-process cache and an
// optional persistent one. Identical text is embedded once.
type Embedder struct {
	svc   llm.VectorService
	store Cache

	mu  sync.RWMutex
	mem map[string][]float32
}

// NewEmbedder creates an Embedder. store may be nil.
func NewEmbedder(svc llm.VectorService, store Cache) *Embedder {
	return &Embedder{svc: svc, store: store, mem: make(map[string][]float32)}
}

// TextKey is the cache key for a text.
func TextKey(text string) string {
	sum := sha256.Sum256([]byte(utils.Fold(text)))
	return hex.EncodeToString(sum[:16])
}

// Embed returns one vector per text, calling the service only for misses.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missKeys []string
	missing := map[string]bool{}

	e.mu.RLock()
	for i, t := range texts {
		keys[i] = TextKey(t)
		if v, ok := e.mem[keys[i]]; ok {
			out[i] = v
		} else if !missing[keys[i]] {
			missing[keys[i]] = true
			missKeys = append(missKeys, keys[i])
		}
	}
	e.mu.RUnlock()

	if len(missKeys) > 0 && e.store != nil {
		found, err := e.store.GetEmbeddings(missKeys)
		if err != nil {
			slog.Warn("embedding cache read failed", "error", err)
		}
		e.remember(found)
		for k := range found {
			delete(missing, k)
		}
	}

	if len(missing) > 0 {
		var toEmbed []string
		var toKeys []string
		for i, t := range texts {
			if missing[keys[i]] {
				toEmbed = append(toEmbed, t)
				toKeys = append(toKeys, keys[i])
				delete(missing, keys[i])
			}
		}
		vecs, err := e.svc.Embed(ctx, toEmbed)
		if err != nil {
			return nil, fmt.Errorf("embed %d texts: %w", len(toEmbed), err)
		}
		fresh := make(map[string][]float32, len(vecs))
		for i, v := range vecs {
			fresh[toKeys[i]] = v
		}
		e.remember(fresh)
		if e.store != nil {
			if err := e.store.PutEmbeddings(fresh); err != nil {
				slog.Warn("embedding cache write failed", "error", err)
			}
		}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := range out {
		if out[i] == nil {
			out[i] = e.mem[keys[i]]
		}
	}
	return out, nil
}

func (e *Embedder) remember(vectors map[string][]float32) {
	if len(vectors) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range vectors {
		e.mem[k] = v
	}
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
