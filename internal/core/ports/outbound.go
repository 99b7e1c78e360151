package ports

import (
	"context"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

// Embedder builds vectors for catalog documents and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores document vectors and answers filtered nearest-neighbour queries.
// Query returns matches ordered by ascending distance.
type VectorIndex interface {
	Insert(ctx context.Context, items []domain.IndexedVector) error
	Query(ctx context.Context, vector []float32, k int, filter domain.RetrievalFilter) ([]domain.IndexMatch, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// AtomicReplacer is implemented by indexes that can swap their whole content in one step.
type AtomicReplacer interface {
	Replace(ctx context.Context, items []domain.IndexedVector) error
}

// AnswerGenerator writes the user-facing answer from retrieved evidence.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// ProviderProbe reports whether an external model provider is reachable.
type ProviderProbe interface {
	Probe(ctx context.Context) error
}

// DocumentCatalog enumerates the static safety documents.
type DocumentCatalog interface {
	All(ctx context.Context) ([]domain.Document, error)
}

// KnowledgeUpdateQueue publishes/consumes knowledge base rebuild requests.
type KnowledgeUpdateQueue interface {
	PublishKnowledgeUpdate(ctx context.Context, reason string) error
	SubscribeKnowledgeUpdate(ctx context.Context, handler func(context.Context, string) error) error
}
