// Package memory provides the in-process vector index used by the API when no external vector store is configured.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

type entry struct {
	id       string
	vector   []float32
	norm     float64
	text     string
	metadata map[string]string
}

// Index is a brute-force cosine index. Distance is 1 - cosine similarity.
// The dimension is fixed by the constructor or, when zero, by the first inserted vector.
type Index struct {
	mu         sync.RWMutex
	dimensions int
	entries    []entry
	positions  map[string]int
}

func New(dimensions int) *Index {
	return &Index{
		dimensions: dimensions,
		positions:  make(map[string]int),
	}
}

// Insert adds vectors. An id that already exists is overwritten in place.
func (x *Index) Insert(ctx context.Context, items []domain.IndexedVector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	dim := x.dimensions
	prepared, err := prepare(items, &dim)
	if err != nil {
		return err
	}
	x.dimensions = dim
	for _, e := range prepared {
		if pos, ok := x.positions[e.id]; ok {
			x.entries[pos] = e
			continue
		}
		x.positions[e.id] = len(x.entries)
		x.entries = append(x.entries, e)
	}
	return nil
}

// Replace swaps the whole content in one step. Readers see either the old or the new corpus.
func (x *Index) Replace(ctx context.Context, items []domain.IndexedVector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dim := 0
	x.mu.RLock()
	if len(x.entries) == 0 {
		dim = x.dimensions
	}
	x.mu.RUnlock()

	prepared, err := prepare(items, &dim)
	if err != nil {
		return err
	}
	positions := make(map[string]int, len(prepared))
	entries := make([]entry, 0, len(prepared))
	for _, e := range prepared {
		if pos, ok := positions[e.id]; ok {
			entries[pos] = e
			continue
		}
		positions[e.id] = len(entries)
		entries = append(entries, e)
	}

	x.mu.Lock()
	x.entries = entries
	x.positions = positions
	if dim > 0 {
		x.dimensions = dim
	}
	x.mu.Unlock()
	return nil
}

func (x *Index) Query(ctx context.Context, vector []float32, k int, filter domain.RetrievalFilter) ([]domain.IndexMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 || len(x.entries) == 0 {
		return []domain.IndexMatch{}, nil
	}
	if len(vector) != x.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), x.dimensions)
	}

	qnorm := norm(vector)
	type scored struct {
		pos      int
		distance float64
	}
	candidates := make([]scored, 0, len(x.entries))
	for i, e := range x.entries {
		if !filter.Matches(e.metadata) {
			continue
		}
		candidates = append(candidates, scored{pos: i, distance: 1 - cosine(vector, qnorm, e)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if k > len(candidates) {
		k = len(candidates)
	}

	out := make([]domain.IndexMatch, 0, k)
	for _, c := range candidates[:k] {
		e := x.entries[c.pos]
		metadata := make(map[string]string, len(e.metadata))
		for key, v := range e.metadata {
			metadata[key] = v
		}
		out = append(out, domain.IndexMatch{
			ID:       e.id,
			Text:     e.text,
			Metadata: metadata,
			Distance: c.distance,
		})
	}
	return out, nil
}

func (x *Index) Count(context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries), nil
}

func (x *Index) Clear(context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = nil
	x.positions = make(map[string]int)
	return nil
}

// Dimensions returns the vector dimension, zero while it is still undecided.
func (x *Index) Dimensions() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dimensions
}

func prepare(items []domain.IndexedVector, dim *int) ([]entry, error) {
	out := make([]entry, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("vector id is required")
		}
		if len(item.Vector) == 0 {
			return nil, fmt.Errorf("vector %s is empty", item.ID)
		}
		if *dim == 0 {
			*dim = len(item.Vector)
		}
		if len(item.Vector) != *dim {
			return nil, fmt.Errorf("vector %s dimension mismatch: got %d, expected %d", item.ID, len(item.Vector), *dim)
		}
		vec := make([]float32, len(item.Vector))
		copy(vec, item.Vector)
		metadata := make(map[string]string, len(item.Metadata))
		for k, v := range item.Metadata {
			metadata[k] = v
		}
		out = append(out, entry{
			id:       item.ID,
			vector:   vec,
			norm:     norm(vec),
			text:     item.Text,
			metadata: metadata,
		})
	}
	return out, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func cosine(query []float32, qnorm float64, e entry) float64 {
	if qnorm == 0 || e.norm == 0 {
		return 0
	}
	var dot float64
	for i := range query {
		dot += float64(query[i]) * float64(e.vector[i])
	}
	return dot / (qnorm * e.norm)
}
