package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/core/ports"
)

const defaultRetrieveLimit = 5

type Retriever struct {
	embedder ports.Embedder
	index    ports.VectorIndex
}

func NewRetriever(embedder ports.Embedder, index ports.VectorIndex) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
	}
}

// Retrieve embeds query, searches the index under filter and returns results ranked by relevance.
func (r *Retriever) Retrieve(
	ctx context.Context,
	query string,
	filter domain.RetrievalFilter,
	limit int,
) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("query is required"))
	}
	if limit <= 0 {
		limit = defaultRetrieveLimit
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "embed query", err)
	}

	matches, err := r.index.Query(ctx, queryVector, limit, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "query index", err)
	}

	results := make([]domain.SearchResult, 0, len(matches))
	outOfRange := 0
	for _, match := range matches {
		if match.Distance < 0 || match.Distance > 1 {
			outOfRange++
		}
		results = append(results, toSearchResult(match))
	}
	if outOfRange > 0 {
		slog.Warn("index_distance_out_of_range", "count", outOfRange, "returned", len(matches))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// RelevanceFromDistance maps an index distance to a relevance score in [0,1].
func RelevanceFromDistance(distance float64) float64 {
	return clamp01(1 - distance)
}

func toSearchResult(match domain.IndexMatch) domain.SearchResult {
	metadata := make(map[string]string, len(match.Metadata))
	for k, v := range match.Metadata {
		metadata[k] = v
	}
	docType := metadata[domain.MetaDocType]
	if docType == "" {
		docType = domain.DefaultDocType
	}
	return domain.SearchResult{
		ID:             match.ID,
		Title:          metadata[domain.MetaTitle],
		Content:        match.Text,
		Metadata:       metadata,
		RelevanceScore: RelevanceFromDistance(match.Distance),
		DocumentType:   docType,
		Location:       metadata[domain.MetaLocation],
		Tags:           []string{},
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func describeFilter(filter domain.RetrievalFilter) string {
	if filter.IsEmpty() {
		return "none"
	}
	return fmt.Sprintf("location=%q category=%q", filter.Location, filter.Category)
}
