package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/core/ports"
)

const defaultGenerationTimeout = 20 * time.Second

// GenerationCapability is decided once at startup: either a ready generator or unavailable with a reason.
type GenerationCapability struct {
	generator ports.AnswerGenerator
	model     string
	reason    string
}

func GenerationReady(generator ports.AnswerGenerator, model string) GenerationCapability {
	if generator == nil {
		return GenerationUnavailable("generator not configured")
	}
	return GenerationCapability{generator: generator, model: model}
}

func GenerationUnavailable(reason string) GenerationCapability {
	return GenerationCapability{reason: reason}
}

func (c GenerationCapability) Ready() bool    { return c.generator != nil }
func (c GenerationCapability) Model() string  { return c.model }
func (c GenerationCapability) Reason() string { return c.reason }

type QueryUseCase struct {
	retriever         *Retriever
	generation        GenerationCapability
	assembler         *Assembler
	generationTimeout time.Duration
	now               func() time.Time
}

func NewQueryUseCase(
	retriever *Retriever,
	generation GenerationCapability,
	assembler *Assembler,
	generationTimeout time.Duration,
) *QueryUseCase {
	if generationTimeout <= 0 {
		generationTimeout = defaultGenerationTimeout
	}
	return &QueryUseCase{
		retriever:         retriever,
		generation:        generation,
		assembler:         assembler,
		generationTimeout: generationTimeout,
		now:               time.Now,
	}
}

func (uc *QueryUseCase) Generation() GenerationCapability {
	return uc.generation
}

// Answer never fails because an AI capability is missing; only caller mistakes are returned as errors.
func (uc *QueryUseCase) Answer(ctx context.Context, req domain.QueryRequest) (bundle *domain.AnswerBundle, err error) {
	startedAt := uc.now()
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("message is required"))
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("rag_query_panic", "panic", fmt.Sprint(r))
			out := uc.assembler.ErrorBundle(fmt.Errorf("internal error: %v", r), startedAt)
			bundle, err = &out, nil
		}
	}()

	fallbackReason := ""
	results, err := uc.retriever.Retrieve(ctx, req.Query, req.Filter, req.Limit)
	if err != nil {
		if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
			return nil, err
		}
		slog.Warn("rag_retrieval_degraded", "filter", describeFilter(req.Filter), "error", err)
		results = nil
		fallbackReason = domain.FallbackRetrievalUnavailable
	}

	text, generated, genReason := uc.generate(ctx, req, results)
	if fallbackReason == "" {
		fallbackReason = genReason
	}

	out := uc.assembler.Assemble(AssembleInput{
		Query:         req.Query,
		Results:       results,
		GeneratedText: text,
		Generated:     generated,
		Location:      req.Location,
		ModelUsed:     uc.generation.Model(),
		StartedAt:     startedAt,
	})
	if fallbackReason != "" {
		out.Metadata["fallback_reason"] = fallbackReason
	}
	return &out, nil
}

func (uc *QueryUseCase) generate(ctx context.Context, req domain.QueryRequest, results []domain.SearchResult) (string, bool, string) {
	if !uc.generation.Ready() {
		return "", false, domain.FallbackGenerationUnavailable
	}

	genCtx, cancel := context.WithTimeout(ctx, uc.generationTimeout)
	defer cancel()

	text, err := uc.generation.generator.GenerateAnswer(genCtx, domain.GenerationRequest{
		Query:    req.Query,
		Location: req.Location,
		Weather:  req.Weather,
		Results:  results,
	})
	if err != nil {
		reason := domain.FallbackGenerationFailed
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			reason = domain.FallbackGenerationTimeout
		}
		slog.Warn("rag_generation_degraded",
			"reason", reason,
			"error", domain.WrapError(domain.ErrGenerationUnavailable, "generate answer", err),
		)
		return "", false, reason
	}
	if strings.TrimSpace(text) == "" {
		slog.Warn("rag_generation_degraded", "reason", domain.FallbackGenerationFailed, "error", "empty answer")
		return "", false, domain.FallbackGenerationFailed
	}
	return text, true, ""
}

type SearchUseCase struct {
	retriever *Retriever
}

func NewSearchUseCase(retriever *Retriever) *SearchUseCase {
	return &SearchUseCase{retriever: retriever}
}

func (uc *SearchUseCase) Search(
	ctx context.Context,
	query string,
	filter domain.RetrievalFilter,
	limit int,
) (*domain.SearchResponse, error) {
	results, err := uc.retriever.Retrieve(ctx, query, filter, limit)
	degraded := false
	if err != nil {
		if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
			return nil, err
		}
		slog.Warn("knowledge_search_degraded", "filter", describeFilter(filter), "error", err)
		results = []domain.SearchResult{}
		degraded = true
	}

	return &domain.SearchResponse{
		Query:      query,
		Results:    results,
		TotalFound: len(results),
		Degraded:   degraded,
	}, nil
}
