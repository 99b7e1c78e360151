package usecase

import (
	"context"
	"sync"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

type embedderFake struct {
	mu        sync.Mutex
	queries   []string
	batches   [][]string
	err       error
	shortBy   int
	dimension int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts) - f.shortBy
	if n < 0 {
		n = 0
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = f.vector()
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(), nil
}

func (f *embedderFake) vector() []float32 {
	d := f.dimension
	if d <= 0 {
		d = 2
	}
	return make([]float32, d)
}

type indexFake struct {
	mu       sync.Mutex
	matches  []domain.IndexMatch
	err      error
	lastK    int
	filter   domain.RetrievalFilter
	inserted []domain.IndexedVector
	count    int
	cleared  bool
}

func (f *indexFake) Insert(_ context.Context, items []domain.IndexedVector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, items...)
	f.count += len(items)
	return nil
}

func (f *indexFake) Query(_ context.Context, _ []float32, k int, filter domain.RetrievalFilter) ([]domain.IndexMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastK = k
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.IndexMatch, 0, len(f.matches))
	for _, m := range f.matches {
		if filter.Matches(m.Metadata) {
			out = append(out, m)
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *indexFake) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

func (f *indexFake) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = true
	f.count = 0
	f.inserted = nil
	return nil
}

type replacingIndexFake struct {
	indexFake
	replaced [][]domain.IndexedVector
}

func (f *replacingIndexFake) Replace(_ context.Context, items []domain.IndexedVector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, items)
	f.count = len(items)
	return nil
}

type generatorFake struct {
	text  string
	err   error
	block bool
	req   domain.GenerationRequest
}

func (f *generatorFake) GenerateAnswer(ctx context.Context, req domain.GenerationRequest) (string, error) {
	f.req = req
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type catalogFake struct {
	docs []domain.Document
	err  error
}

func (f catalogFake) All(context.Context) ([]domain.Document, error) {
	return f.docs, f.err
}

func match(id string, distance float64, content, location, category string) domain.IndexMatch {
	return domain.IndexMatch{
		ID:       id,
		Text:     content,
		Distance: distance,
		Metadata: map[string]string{
			domain.MetaTitle:    "title " + id,
			domain.MetaLocation: location,
			domain.MetaCategory: category,
			domain.MetaDocType:  "safety_guide",
		},
	}
}
