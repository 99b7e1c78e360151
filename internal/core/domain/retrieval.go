package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFilterValueLen = 100

// RetrievalFilter narrows a search with exact-match metadata constraints. Empty fields are unconstrained.
type RetrievalFilter struct {
	Location string `json:"location,omitempty"`
	Category string `json:"category,omitempty"`
}

// NewRetrievalFilter trims and validates raw filter values. Nil or empty values mean no constraint.
func NewRetrievalFilter(location, category *string) (RetrievalFilter, error) {
	loc, err := normalizeFilterValue("location", location)
	if err != nil {
		return RetrievalFilter{}, err
	}
	cat, err := normalizeFilterValue("category", category)
	if err != nil {
		return RetrievalFilter{}, err
	}
	return RetrievalFilter{Location: loc, Category: cat}, nil
}

func normalizeFilterValue(field string, raw *string) (string, error) {
	if raw == nil || *raw == "" {
		return "", nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return "", WrapError(ErrInvalidFilter, "build filter", fmt.Errorf("%s must not be blank", field))
	}
	if utf8.RuneCountInString(value) > maxFilterValueLen {
		return "", WrapError(ErrInvalidFilter, "build filter", fmt.Errorf("%s exceeds %d characters", field, maxFilterValueLen))
	}
	if strings.IndexFunc(value, unicode.IsControl) >= 0 {
		return "", WrapError(ErrInvalidFilter, "build filter", fmt.Errorf("%s contains control characters", field))
	}
	return value, nil
}

func (f RetrievalFilter) IsEmpty() bool {
	return f.Location == "" && f.Category == ""
}

// Matches reports whether metadata satisfies every constraint of the filter.
func (f RetrievalFilter) Matches(metadata map[string]string) bool {
	if f.Location != "" && metadata[MetaLocation] != f.Location {
		return false
	}
	if f.Category != "" && metadata[MetaCategory] != f.Category {
		return false
	}
	return true
}

type SearchResult struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata"`
	RelevanceScore float64           `json:"relevance_score"`
	DocumentType   string            `json:"document_type"`
	Location       string            `json:"location,omitempty"`
	Tags           []string          `json:"tags"`
}

type SearchResponse struct {
	Query      string         `json:"query"`
	Results    []SearchResult `json:"results"`
	TotalFound int            `json:"total_found"`
	Degraded   bool           `json:"degraded"`
}
