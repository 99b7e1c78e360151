package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/alpine-guardian/internal/config"
	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/core/ports"
	"github.com/kirillkom/alpine-guardian/internal/core/usecase"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/catalog"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/queue/nats"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/resilience"
)

const Version = "1.0.0"

// Observer receives population, breaker and cache metrics. *metrics.IndexMetrics implements it.
type Observer interface {
	usecase.PopulateObserver
	resilience.StateObserver
	EmbeddingCacheTotal() *prometheus.CounterVec
}

type Options struct {
	Observer Observer
	// PopulateOnStart blocks New until the index holds the catalog (check-and-skip).
	PopulateOnStart bool
	// ProbeGeneration decides the generation capability; when false generation stays unavailable.
	ProbeGeneration bool
	// ConnectQueue opens NATS when NATS_URL is set.
	ConnectQueue bool
}

type App struct {
	Config config.Config

	Catalog   ports.DocumentCatalog
	Index     ports.VectorIndex
	Embedder  ports.Embedder
	Populator *usecase.Populator
	Queue     ports.KnowledgeUpdateQueue

	QueryUC  *usecase.QueryUseCase
	SearchUC *usecase.SearchUseCase
	UpdateUC *usecase.KnowledgeUpdateUseCase

	PopulateReport domain.PopulateReport

	embedModel string
	cacheKind  string
	closers    *closerStack
}

func New(ctx context.Context, cfg config.Config, opts Options) (app *App, err error) {
	closers := &closerStack{}
	defer func() {
		if err != nil {
			closers.close()
		}
	}()

	executor := resilience.NewExecutor(cfg.Resilience())
	if opts.Observer != nil {
		executor = executor.WithObserver(opts.Observer)
	}

	source, err := buildCatalog(ctx, cfg, closers)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	baseEmbedder, err := buildEmbedder(cfg, executor)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	embedder, cacheKind, err := wrapWithCache(ctx, cfg, baseEmbedder, opts.Observer, closers)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}

	index, err := buildIndex(ctx, cfg, executor)
	if err != nil {
		return nil, fmt.Errorf("init vector index: %w", err)
	}

	var populateObserver usecase.PopulateObserver
	if opts.Observer != nil {
		populateObserver = opts.Observer
	}
	populator := usecase.NewPopulator(embedder, index, populateObserver)

	app = &App{
		Config:     cfg,
		Catalog:    source,
		Index:      index,
		Embedder:   embedder,
		Populator:  populator,
		embedModel: baseEmbedder.Model(),
		cacheKind:  cacheKind,
		closers:    closers,
	}

	if opts.PopulateOnStart {
		if err := app.populate(ctx); err != nil {
			return nil, err
		}
	}

	capability := usecase.GenerationUnavailable("generation not probed")
	if opts.ProbeGeneration {
		generator, reason := buildGenerator(cfg, executor)
		capability = probeGeneration(ctx, generator, reason)
	}

	var queue ports.KnowledgeUpdateQueue
	if opts.ConnectQueue && cfg.NATSURL != "" {
		q, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		closers.push(q.Close)
		queue = q
		app.Queue = q
	}

	// Only a shared backend can be rebuilt by the worker; an in-memory index is rebuilt in process.
	var updateQueue ports.KnowledgeUpdateQueue
	if cfg.VectorBackend == backendQdrant {
		updateQueue = queue
	}

	retriever := usecase.NewRetriever(embedder, index)
	assembler := usecase.NewAssembler(cfg.EmergencyNumber)
	app.QueryUC = usecase.NewQueryUseCase(retriever, capability, assembler, cfg.GenerationTimeout)
	app.SearchUC = usecase.NewSearchUseCase(retriever)
	app.UpdateUC = usecase.NewKnowledgeUpdateUseCase(source, populator, updateQueue, cfg.RAGPopulateBatchSize)

	return app, nil
}

func (a *App) populate(ctx context.Context) error {
	docs, err := a.Catalog.All(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	report, err := a.Populator.Populate(ctx, docs, a.Config.RAGPopulateBatchSize)
	if err != nil {
		return fmt.Errorf("populate index: %w", err)
	}
	a.PopulateReport = report
	slog.Info("index_ready",
		"backend", a.Config.VectorBackend,
		"documents", report.Documents,
		"skipped", report.Skipped,
	)
	return nil
}

// Status reports providers and the knowledge base. It never fails; problems are described inline.
func (a *App) Status(ctx context.Context) domain.ServiceStatus {
	generation := a.QueryUC.Generation()
	status := domain.ServiceStatus{
		Version: Version,
		Generation: domain.GenerationStatus{
			Available: generation.Ready(),
			Provider:  a.Config.GenProvider,
			Model:     generation.Model(),
			Reason:    generation.Reason(),
		},
		Embedding: domain.EmbeddingStatus{
			Provider: a.Config.EmbedProvider,
			Model:    a.embedModel,
			Cache:    a.cacheKind,
		},
		Knowledge: domain.KnowledgeStatus{
			Backend: a.Config.VectorBackend,
			Catalog: a.Config.CatalogSource,
		},
	}

	countCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := a.Index.Count(countCtx)
	if err != nil {
		status.Knowledge.Error = err.Error()
	}
	status.Knowledge.Documents = count

	if docs, err := a.Catalog.All(countCtx); err == nil {
		status.Knowledge.Categories = catalog.Categories(docs)
	}
	if status.Knowledge.Categories == nil {
		status.Knowledge.Categories = []string{}
	}
	if last := a.UpdateUC.LastUpdated(); !last.IsZero() {
		status.Knowledge.LastUpdated = &last
	}
	return status
}

func (a *App) Close() {
	if a.closers != nil {
		a.closers.close()
	}
}
