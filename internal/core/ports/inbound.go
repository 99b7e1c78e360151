package ports

import (
	"context"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

// SafetyQueryService is the inbound contract for answering safety questions.
type SafetyQueryService interface {
	Answer(ctx context.Context, req domain.QueryRequest) (*domain.AnswerBundle, error)
}

// KnowledgeSearcher is the inbound contract for direct knowledge base search.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, filter domain.RetrievalFilter, limit int) (*domain.SearchResponse, error)
}

// KnowledgeUpdater triggers a rebuild of the vector index from the catalog.
type KnowledgeUpdater interface {
	RequestUpdate(ctx context.Context, reason string) error
}
