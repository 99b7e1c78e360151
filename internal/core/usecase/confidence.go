package usecase

import "github.com/kirillkom/alpine-guardian/internal/core/domain"

// NoEvidenceConfidence is reported when nothing was retrieved; the templated answer still carries guidance.
const NoEvidenceConfidence = 0.3

const (
	relevanceWeight         = 0.7
	corroborationWeight     = 0.3
	corroborationSaturation = 3.0
)

// EstimateConfidence combines mean relevance and the number of corroborating sources into [0,1].
func EstimateConfidence(results []domain.SearchResult) float64 {
	if len(results) == 0 {
		return NoEvidenceConfidence
	}

	var sum float64
	for _, r := range results {
		sum += r.RelevanceScore
	}
	avgRelevance := sum / float64(len(results))

	docFactor := float64(len(results)) / corroborationSaturation
	if docFactor > 1 {
		docFactor = 1
	}

	return clamp01(relevanceWeight*avgRelevance + corroborationWeight*docFactor)
}
