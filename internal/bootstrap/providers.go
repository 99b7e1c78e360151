package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/alpine-guardian/internal/config"
	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/core/ports"
	"github.com/kirillkom/alpine-guardian/internal/core/usecase"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/cache"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/cache/redis"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/catalog"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/embedcache"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/llm/openai"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/resilience"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/vector/memory"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/vector/qdrant"
)

const (
	providerOllama = "ollama"
	providerOpenAI = "openai"
	providerNone   = "none"

	backendMemory = "memory"
	backendQdrant = "qdrant"

	catalogBuiltin  = "builtin"
	catalogFile     = "file"
	catalogPostgres = "postgres"

	memoryCacheKeys = 10_000
	probeTimeout    = 10 * time.Second
)

type generationProvider interface {
	ports.AnswerGenerator
	ports.ProviderProbe
	Model() string
}

type embeddingProvider interface {
	ports.Embedder
	Model() string
}

// buildCatalog opens the configured catalog source. An empty Postgres table is seeded from the builtin catalog.
func buildCatalog(ctx context.Context, cfg config.Config, closers *closerStack) (ports.DocumentCatalog, error) {
	switch cfg.CatalogSource {
	case "", catalogBuiltin:
		return catalog.Builtin()
	case catalogFile:
		if strings.TrimSpace(cfg.CatalogPath) == "" {
			return nil, domain.WrapError(domain.ErrCatalogInvalid, "build catalog", errors.New("CATALOG_PATH is required for file catalogs"))
		}
		return catalog.LoadFile(cfg.CatalogPath)
	case catalogPostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers.push(func() { _ = db.Close() })

		repo := postgres.NewCatalogRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		n, err := repo.Count(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			builtin, err := catalog.Builtin()
			if err != nil {
				return nil, err
			}
			docs, _ := builtin.All(ctx)
			if err := repo.Upsert(ctx, docs); err != nil {
				return nil, fmt.Errorf("seed catalog: %w", err)
			}
			slog.Info("catalog_seeded", "documents", len(docs))
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported CATALOG_SOURCE %q", cfg.CatalogSource)
	}
}

func buildEmbedder(cfg config.Config, executor *resilience.Executor) (embeddingProvider, error) {
	switch cfg.EmbedProvider {
	case "", providerOllama:
		return ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)), nil
	case providerOpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" && strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
			return nil, errors.New("OPENAI_API_KEY or OPENAI_BASE_URL is required for the openai embedder")
		}
		return openai.NewEmbedder(openai.New(openAIConfig(cfg), executor)), nil
	default:
		return nil, fmt.Errorf("unsupported EMBED_PROVIDER %q", cfg.EmbedProvider)
	}
}

// buildGenerator returns nil with a reason when generation is disabled or misconfigured.
func buildGenerator(cfg config.Config, executor *resilience.Executor) (generationProvider, string) {
	switch cfg.GenProvider {
	case providerNone:
		return nil, "generation disabled by configuration"
	case "", providerOllama:
		return ollama.NewGenerator(ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)), ""
	case providerOpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" && strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
			return nil, "OPENAI_API_KEY is not set"
		}
		return openai.NewGenerator(openai.New(openAIConfig(cfg), executor)), ""
	default:
		return nil, fmt.Sprintf("unsupported GEN_PROVIDER %q", cfg.GenProvider)
	}
}

// probeGeneration decides the generation capability once; the answer path never retries it.
func probeGeneration(ctx context.Context, generator generationProvider, reason string) usecase.GenerationCapability {
	if generator == nil {
		slog.Warn("generation_unavailable", "reason", reason)
		return usecase.GenerationUnavailable(reason)
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := generator.Probe(probeCtx); err != nil {
		slog.Warn("generation_unavailable", "model", generator.Model(), "error", err)
		return usecase.GenerationUnavailable(fmt.Sprintf("probe %s: %v", generator.Model(), err))
	}
	slog.Info("generation_ready", "model", generator.Model())
	return usecase.GenerationReady(generator, generator.Model())
}

func openAIConfig(cfg config.Config) openai.Config {
	return openai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		EmbedModel:  cfg.OpenAIEmbedModel,
		GenModel:    cfg.OpenAIGenModel,
		Temperature: 0.7,
		MaxTokens:   512,
	}
}

// wrapWithCache caches query embeddings in Redis when REDIS_ADDR is set, otherwise in process.
// An unreachable Redis fails startup.
func wrapWithCache(
	ctx context.Context,
	cfg config.Config,
	inner embeddingProvider,
	observer Observer,
	closers *closerStack,
) (ports.Embedder, string, error) {
	var (
		store embedcacheStore
		kind  string
	)
	if addrs := redis.ParseAddrs(cfg.RedisAddr); len(addrs) > 0 {
		rs, err := redis.NewStore(redis.Config{Addrs: addrs})
		if err != nil {
			return nil, "", err
		}
		closers.push(rs.Close)
		pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			return nil, "", err
		}
		store, kind = rs, "redis"
	} else {
		store, kind = cache.NewMemory(memoryCacheKeys), "memory"
	}

	namespace := cfg.EmbedProvider + ":" + inner.Model()
	var counter *prometheus.CounterVec
	if observer != nil {
		counter = observer.EmbeddingCacheTotal()
	}
	return embedcache.New(inner, store, namespace, cfg.EmbedCacheTTL, counter), kind, nil
}

type embedcacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func buildIndex(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.VectorIndex, error) {
	switch cfg.VectorBackend {
	case "", backendMemory:
		return memory.New(0), nil
	case backendQdrant:
		client := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)
		pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			return nil, domain.WrapError(domain.ErrIndexNotReady, "ping qdrant", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}

type closerStack struct {
	fns []func()
}

func (s *closerStack) push(fn func()) {
	s.fns = append(s.fns, fn)
}

// close runs closers in reverse order of registration.
func (s *closerStack) close() {
	for i := len(s.fns) - 1; i >= 0; i-- {
		s.fns[i]()
	}
	s.fns = nil
}
