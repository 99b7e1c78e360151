package usecase

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

const (
	sourcePreviewChars = 200
	ellipsis           = "..."
	defaultEmergency   = "1414"
)

type Assembler struct {
	emergencyNumber string
	now             func() time.Time
}

func NewAssembler(emergencyNumber string) *Assembler {
	if strings.TrimSpace(emergencyNumber) == "" {
		emergencyNumber = defaultEmergency
	}
	return &Assembler{
		emergencyNumber: emergencyNumber,
		now:             time.Now,
	}
}

type AssembleInput struct {
	Query         string
	Results       []domain.SearchResult
	GeneratedText string
	Generated     bool
	Location      string
	ModelUsed     string
	StartedAt     time.Time
}

func (a *Assembler) Assemble(in AssembleInput) domain.AnswerBundle {
	message := in.GeneratedText
	if !in.Generated {
		message = a.FallbackMessage(in.Results, in.Location)
	}

	modelUsed := in.ModelUsed
	if !in.Generated || modelUsed == "" {
		modelUsed = "fallback"
	}

	retrieved := in.Results
	if retrieved == nil {
		retrieved = []domain.SearchResult{}
	}

	return domain.AnswerBundle{
		Message:      message,
		Sources:      BuildSources(in.Results),
		Confidence:   EstimateConfidence(in.Results),
		ResponseTime: a.elapsedSeconds(in.StartedAt),
		Retrieved:    retrieved,
		Metadata: map[string]any{
			"model_used":       modelUsed,
			"docs_retrieved":   len(in.Results),
			"location_context": in.Location,
		},
	}
}

// FallbackMessage is the deterministic answer used whenever no generated text is available.
func (a *Assembler) FallbackMessage(results []domain.SearchResult, location string) string {
	if len(results) == 0 {
		return fmt.Sprintf(
			"Sorry, I could not find specific information for your request right now. In an emergency call %s (Swiss mountain rescue).",
			a.emergencyNumber,
		)
	}

	var b strings.Builder
	b.WriteString("Based on the available information:\n\n")
	b.WriteString(results[0].Content)
	b.WriteString("\n\n")
	if location != "" {
		fmt.Fprintf(&b, "For %s I also recommend checking the current weather conditions and avalanche bulletins.\n\n", location)
	}
	fmt.Fprintf(&b, "Important: in an emergency contact Swiss mountain rescue immediately on %s.", a.emergencyNumber)
	return b.String()
}

// ErrorBundle is the worst-case answer: still actionable, never blank.
func (a *Assembler) ErrorBundle(err error, startedAt time.Time) domain.AnswerBundle {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return domain.AnswerBundle{
		Message:      fmt.Sprintf("Sorry, a technical error occurred. In an emergency call %s.", a.emergencyNumber),
		Sources:      []domain.Source{},
		Confidence:   0,
		ResponseTime: a.elapsedSeconds(startedAt),
		Retrieved:    []domain.SearchResult{},
		Metadata: map[string]any{
			"model_used":      "fallback",
			"error":           detail,
			"fallback_reason": domain.FallbackInternalError,
		},
	}
}

func (a *Assembler) elapsedSeconds(startedAt time.Time) float64 {
	if startedAt.IsZero() {
		return 0
	}
	elapsed := a.now().Sub(startedAt).Seconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func BuildSources(results []domain.SearchResult) []domain.Source {
	sources := make([]domain.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, domain.Source{
			Title:          r.Title,
			Content:        TruncateForDisplay(r.Content, sourcePreviewChars),
			RelevanceScore: r.RelevanceScore,
			DocumentType:   r.DocumentType,
			Location:       r.Location,
		})
	}
	return sources
}

// TruncateForDisplay keeps the first max characters and appends an ellipsis when content is longer.
func TruncateForDisplay(content string, max int) string {
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	off := 0
	for i := 0; i < max; i++ {
		_, size := utf8.DecodeRuneInString(content[off:])
		off += size
	}
	return content[:off] + ellipsis
}
