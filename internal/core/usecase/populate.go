package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/core/ports"
)

const DefaultPopulateBatchSize = 100

// PopulateObserver receives per-batch progress. Metrics implement it.
type PopulateObserver interface {
	ObservePopulateBatch(documents int, duration time.Duration, err error)
}

type Populator struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	observer PopulateObserver
}

func NewPopulator(embedder ports.Embedder, index ports.VectorIndex, observer PopulateObserver) *Populator {
	return &Populator{
		embedder: embedder,
		index:    index,
		observer: observer,
	}
}

// Populate indexes documents once per corpus version. A non-empty index is left untouched.
func (p *Populator) Populate(ctx context.Context, docs []domain.Document, batchSize int) (domain.PopulateReport, error) {
	count, err := p.index.Count(ctx)
	if err != nil {
		return domain.PopulateReport{}, domain.WrapError(domain.ErrIndexNotReady, "count index", err)
	}
	if count > 0 {
		slog.Info("index_populate_skipped", "existing", count, "documents", len(docs))
		return domain.PopulateReport{Documents: count, Skipped: true}, nil
	}

	return p.insertBatches(ctx, docs, batchSize, p.index.Insert)
}

// Rebuild clears the index and indexes docs again. Indexes that support atomic replacement
// are swapped in one step after every batch has been embedded.
func (p *Populator) Rebuild(ctx context.Context, docs []domain.Document, batchSize int) (domain.PopulateReport, error) {
	if replacer, ok := p.index.(ports.AtomicReplacer); ok {
		staged := make([]domain.IndexedVector, 0, len(docs))
		report, err := p.insertBatches(ctx, docs, batchSize, func(_ context.Context, items []domain.IndexedVector) error {
			staged = append(staged, items...)
			return nil
		})
		if err != nil {
			return domain.PopulateReport{}, err
		}
		if err := replacer.Replace(ctx, staged); err != nil {
			return domain.PopulateReport{}, fmt.Errorf("replace index: %w", err)
		}
		return report, nil
	}

	if err := p.index.Clear(ctx); err != nil {
		return domain.PopulateReport{}, fmt.Errorf("clear index: %w", err)
	}
	return p.insertBatches(ctx, docs, batchSize, p.index.Insert)
}

func (p *Populator) insertBatches(
	ctx context.Context,
	docs []domain.Document,
	batchSize int,
	sink func(context.Context, []domain.IndexedVector) error,
) (domain.PopulateReport, error) {
	if batchSize <= 0 {
		batchSize = DefaultPopulateBatchSize
	}

	report := domain.PopulateReport{}
	for offset := 0; offset < len(docs); offset += batchSize {
		end := offset + batchSize
		if end > len(docs) {
			end = len(docs)
		}

		start := time.Now()
		err := p.indexBatch(ctx, docs[offset:end], offset, sink)
		if p.observer != nil {
			p.observer.ObservePopulateBatch(end-offset, time.Since(start), err)
		}
		if err != nil {
			return report, fmt.Errorf("populate batch at offset %d: %w", offset, err)
		}
		report.Batches++
		report.Documents += end - offset
	}

	slog.Info("index_populated", "documents", report.Documents, "batches", report.Batches, "batch_size", batchSize)
	return report, nil
}

func (p *Populator) indexBatch(
	ctx context.Context,
	batch []domain.Document,
	offset int,
	sink func(context.Context, []domain.IndexedVector) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	texts := make([]string, len(batch))
	for i, doc := range batch {
		texts[i] = doc.Content
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed batch: got %d vectors for %d documents", len(vectors), len(batch))
	}

	items := make([]domain.IndexedVector, len(batch))
	for i, doc := range batch {
		items[i] = domain.IndexedVector{
			ID:       IndexID(offset + i),
			Vector:   vectors[i],
			Text:     doc.Content,
			Metadata: doc.IndexMetadata(),
		}
	}

	if err := sink(ctx, items); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// IndexID is the stable vector id of the document at offset in the corpus.
func IndexID(offset int) string {
	return fmt.Sprintf("doc_%d", offset)
}
