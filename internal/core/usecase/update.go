package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/core/ports"
)

const rebuildTimeout = 10 * time.Minute

// KnowledgeUpdateUseCase rebuilds the vector index from the catalog, either in-process
// or by publishing an event for the worker when a queue is configured.
type KnowledgeUpdateUseCase struct {
	catalog   ports.DocumentCatalog
	populator *Populator
	queue     ports.KnowledgeUpdateQueue
	batchSize int

	running atomic.Bool
	wg      sync.WaitGroup
	last    atomic.Pointer[time.Time]
}

func NewKnowledgeUpdateUseCase(
	catalog ports.DocumentCatalog,
	populator *Populator,
	queue ports.KnowledgeUpdateQueue,
	batchSize int,
) *KnowledgeUpdateUseCase {
	return &KnowledgeUpdateUseCase{
		catalog:   catalog,
		populator: populator,
		queue:     queue,
		batchSize: batchSize,
	}
}

func (uc *KnowledgeUpdateUseCase) RequestUpdate(ctx context.Context, reason string) error {
	if uc.queue != nil {
		if err := uc.queue.PublishKnowledgeUpdate(ctx, reason); err != nil {
			return fmt.Errorf("publish knowledge update: %w", err)
		}
		return nil
	}

	if !uc.running.CompareAndSwap(false, true) {
		return domain.WrapError(domain.ErrUpdateInProgress, "request update", errors.New("rebuild already running"))
	}

	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		defer uc.running.Store(false)

		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rebuildTimeout)
		defer cancel()
		if _, err := uc.rebuild(bgCtx, reason); err != nil {
			slog.Error("knowledge_update_failed", "reason", reason, "error", err)
		}
	}()
	return nil
}

// Rebuild runs synchronously. The worker and the CLI call it directly.
func (uc *KnowledgeUpdateUseCase) Rebuild(ctx context.Context, reason string) (domain.PopulateReport, error) {
	if !uc.running.CompareAndSwap(false, true) {
		return domain.PopulateReport{}, domain.WrapError(domain.ErrUpdateInProgress, "rebuild", errors.New("rebuild already running"))
	}
	defer uc.running.Store(false)
	return uc.rebuild(ctx, reason)
}

func (uc *KnowledgeUpdateUseCase) rebuild(ctx context.Context, reason string) (domain.PopulateReport, error) {
	docs, err := uc.catalog.All(ctx)
	if err != nil {
		return domain.PopulateReport{}, fmt.Errorf("load catalog: %w", err)
	}
	report, err := uc.populator.Rebuild(ctx, docs, uc.batchSize)
	if err != nil {
		return domain.PopulateReport{}, err
	}

	now := time.Now().UTC()
	uc.last.Store(&now)
	slog.Info("knowledge_updated", "reason", reason, "documents", report.Documents, "batches", report.Batches)
	return report, nil
}

// LastUpdated returns the time of the last successful rebuild, zero if none happened.
func (uc *KnowledgeUpdateUseCase) LastUpdated() time.Time {
	if t := uc.last.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Wait blocks until background rebuilds started by RequestUpdate finish.
func (uc *KnowledgeUpdateUseCase) Wait() {
	uc.wg.Wait()
}
