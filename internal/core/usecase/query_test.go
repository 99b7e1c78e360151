package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

type panickingGenerator struct{}

func (panickingGenerator) GenerateAnswer(context.Context, domain.GenerationRequest) (string, error) {
	panic("template exploded")
}

func newQueryUseCase(index *indexFake, embedder *embedderFake, generation GenerationCapability) *QueryUseCase {
	return NewQueryUseCase(NewRetriever(embedder, index), generation, NewAssembler("1414"), 50*time.Millisecond)
}

func TestAnswerWithGeneration(t *testing.T) {
	index := &indexFake{matches: []domain.IndexMatch{match("doc_1", 0.2, "Avalanche level 3 is considerable.", "Davos", "avalanche")}}
	gen := &generatorFake{text: "Stay on marked slopes."}
	uc := newQueryUseCase(index, &embedderFake{}, GenerationReady(gen, "llama3"))

	temp := -4.0
	bundle, err := uc.Answer(context.Background(), domain.QueryRequest{
		Query:    "Is it safe to go off-piste?",
		Location: "Davos",
		Weather:  &domain.WeatherContext{Condition: "snow", Temperature: &temp},
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if bundle.Message != "Stay on marked slopes." {
		t.Fatalf("unexpected message %q", bundle.Message)
	}
	if bundle.Metadata["model_used"] != "llama3" {
		t.Fatalf("unexpected model %v", bundle.Metadata["model_used"])
	}
	if _, ok := bundle.Metadata["fallback_reason"]; ok {
		t.Fatalf("unexpected fallback reason on generated answer")
	}
	if len(gen.req.Results) != 1 || gen.req.Location != "Davos" || gen.req.Weather == nil {
		t.Fatalf("generator received unexpected request %+v", gen.req)
	}
	if len(bundle.Sources) != 1 || bundle.Sources[0].Location != "Davos" {
		t.Fatalf("unexpected sources %+v", bundle.Sources)
	}
}

func TestAnswerWithoutGenerationUsesTemplate(t *testing.T) {
	index := &indexFake{matches: []domain.IndexMatch{match("doc_1", 0.1, "Check the SLF bulletin daily.", "Swiss Alps", "avalanche")}}
	uc := newQueryUseCase(index, &embedderFake{}, GenerationUnavailable("no provider"))

	bundle, err := uc.Answer(context.Background(), domain.QueryRequest{Query: "avalanche risk"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !strings.Contains(bundle.Message, "Check the SLF bulletin daily.") {
		t.Fatalf("expected top document in fallback, got %q", bundle.Message)
	}
	if bundle.Metadata["fallback_reason"] != domain.FallbackGenerationUnavailable {
		t.Fatalf("unexpected fallback reason %v", bundle.Metadata["fallback_reason"])
	}
	if bundle.Metadata["model_used"] != "fallback" {
		t.Fatalf("unexpected model %v", bundle.Metadata["model_used"])
	}
}

func TestAnswerGenerationTimeoutFallsBack(t *testing.T) {
	index := &indexFake{matches: []domain.IndexMatch{match("doc_1", 0.3, "Turn back early.", "", "")}}
	uc := newQueryUseCase(index, &embedderFake{}, GenerationReady(&generatorFake{block: true}, "slow"))

	bundle, err := uc.Answer(context.Background(), domain.QueryRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if bundle.Metadata["fallback_reason"] != domain.FallbackGenerationTimeout {
		t.Fatalf("expected timeout reason, got %v", bundle.Metadata["fallback_reason"])
	}
	if !strings.Contains(bundle.Message, "Turn back early.") {
		t.Fatalf("expected template answer, got %q", bundle.Message)
	}
}

func TestAnswerGenerationFailureAndEmptyTextFallBack(t *testing.T) {
	for name, gen := range map[string]*generatorFake{
		"error": {err: errors.New("500 from provider")},
		"empty": {text: "   "},
	} {
		t.Run(name, func(t *testing.T) {
			uc := newQueryUseCase(&indexFake{}, &embedderFake{}, GenerationReady(gen, "m"))
			bundle, err := uc.Answer(context.Background(), domain.QueryRequest{Query: "q"})
			if err != nil {
				t.Fatalf("Answer() error = %v", err)
			}
			if bundle.Metadata["fallback_reason"] != domain.FallbackGenerationFailed {
				t.Fatalf("unexpected fallback reason %v", bundle.Metadata["fallback_reason"])
			}
			if !strings.Contains(bundle.Message, "1414") {
				t.Fatalf("expected emergency number in %q", bundle.Message)
			}
		})
	}
}

func TestAnswerRetrievalOutageDegrades(t *testing.T) {
	gen := &generatorFake{text: "General advice."}
	uc := newQueryUseCase(&indexFake{err: errors.New("connection refused")}, &embedderFake{}, GenerationReady(gen, "m"))

	bundle, err := uc.Answer(context.Background(), domain.QueryRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if bundle.Metadata["fallback_reason"] != domain.FallbackRetrievalUnavailable {
		t.Fatalf("unexpected fallback reason %v", bundle.Metadata["fallback_reason"])
	}
	if bundle.Confidence != NoEvidenceConfidence || len(bundle.Sources) != 0 {
		t.Fatalf("expected no-evidence bundle, got %+v", bundle)
	}
}

func TestAnswerRejectsBlankQuery(t *testing.T) {
	uc := newQueryUseCase(&indexFake{}, &embedderFake{}, GenerationUnavailable("x"))
	_, err := uc.Answer(context.Background(), domain.QueryRequest{Query: " \n"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnswerRecoversFromPanics(t *testing.T) {
	uc := newQueryUseCase(&indexFake{}, &embedderFake{}, GenerationReady(panickingGenerator{}, "m"))

	bundle, err := uc.Answer(context.Background(), domain.QueryRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if bundle.Metadata["fallback_reason"] != domain.FallbackInternalError || bundle.Confidence != 0 {
		t.Fatalf("expected error bundle, got %+v", bundle)
	}
}

func TestGenerationReadyWithNilGeneratorIsUnavailable(t *testing.T) {
	c := GenerationReady(nil, "m")
	if c.Ready() || c.Reason() == "" {
		t.Fatalf("expected unavailable capability, got %+v", c)
	}
}

func TestSearchDegradesOnRetrievalOutage(t *testing.T) {
	uc := NewSearchUseCase(NewRetriever(&embedderFake{err: errors.New("down")}, &indexFake{}))

	resp, err := uc.Search(context.Background(), "q", domain.RetrievalFilter{}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !resp.Degraded || resp.TotalFound != 0 || resp.Results == nil {
		t.Fatalf("unexpected degraded response %+v", resp)
	}
}

func TestSearchReturnsResults(t *testing.T) {
	index := &indexFake{matches: []domain.IndexMatch{
		match("doc_0", 0.6, "a", "Zermatt", "location"),
		match("doc_1", 0.2, "b", "Zermatt", "location"),
	}}
	uc := NewSearchUseCase(NewRetriever(&embedderFake{}, index))

	resp, err := uc.Search(context.Background(), "matterhorn", domain.RetrievalFilter{Location: "Zermatt"}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.TotalFound != 2 || resp.Results[0].ID != "doc_1" || resp.Degraded {
		t.Fatalf("unexpected response %+v", resp)
	}
}
