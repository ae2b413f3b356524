// Package llmtest provides in-memory text and vector services for tests.
package llmtest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"

	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/utils"
)

// ErrFake is returned by fakes configured to fail.
var ErrFake = errors.New("fake service failure")

// Text is a scripted TextService that counts calls per operation.
type Text struct {
	mu      sync.Mutex
	calls   map[string]int
	Handler func(req llm.Request) (*llm.Response, error)
}

// NewText returns a Text that answers every request with handler.
func NewText(handler func(req llm.Request) (*llm.Response, error)) *Text {
	return &Text{calls: make(map[string]int), Handler: handler}
}

// Reply returns a Text that always answers content.
func Reply(content string) *Text {
	return NewText(func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: content}, nil
	})
}

// Failing returns a Text whose every call fails.
func Failing() *Text {
	return NewText(func(llm.Request) (*llm.Response, error) { return nil, ErrFake })
}

func (t *Text) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	t.mu.Lock()
	t.calls[req.Operation]++
	t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.Handler(req)
}

// Calls returns the number of calls for op, or all calls when op is empty.
func (t *Text) Calls(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if op != "" {
		return t.calls[op]
	}
	n := 0
	for _, c := range t.calls {
		n += c
	}
	return n
}

// Vectors embeds text as a normalized bag of hashed tokens, so texts with
// the same tokens are identical and disjoint texts are orthogonal-ish.
type Vectors struct {
	mu        sync.Mutex
	Dims      int
	Fail      bool
	Overrides map[string][]float32
	calls     int
}

// NewVectors returns a 256-dimension fake.
func NewVectors() *Vectors {
	return &Vectors{Dims: 256, Overrides: map[string][]float32{}}
}

func (v *Vectors) Embed(_ context.Context, texts []string) ([][]float32, error) {
	v.mu.Lock()
	v.calls++
	fail := v.Fail
	v.mu.Unlock()
	if fail {
		return nil, ErrFake
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if o, ok := v.Overrides[t]; ok {
			out[i] = o
			continue
		}
		out[i] = v.bag(t)
	}
	return out, nil
}

// Calls returns how many Embed calls were made.
func (v *Vectors) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func (v *Vectors) bag(text string) []float32 {
	vec := make([]float32, v.Dims)
	for _, tok := range utils.Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(v.Dims)]++
	}
	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
