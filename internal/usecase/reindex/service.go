// Package reindex rebuilds the vector index from the relational catalog
// as a cancellable background task. Per-item embedding failures are
// counted but never abort the run; only top-level loss of the catalog or
// index transitions a task to failed.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopdex-io/shopdex/internal/domain"
	"github.com/shopdex-io/shopdex/internal/logger"
	"github.com/shopdex-io/shopdex/internal/metrics"
)

// Service owns the task registry and the background workers.
type Service struct {
	catalog  Catalog
	index    IndexWriter
	embedder Embedder
	registry *registry
	pageSize int
	logger   *zap.Logger
}

// New creates a service. registryCapacity and ttl bound how many finished
// tasks stay pollable and for how long.
func New(catalog Catalog, index IndexWriter, embedder Embedder,
	registryCapacity int, ttl time.Duration, pageSize int, log *zap.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		catalog:  catalog,
		index:    index,
		embedder: embedder,
		registry: newRegistry(registryCapacity, ttl),
		pageSize: pageSize,
		logger:   log,
	}
}

// Start triggers a full rebuild and returns the task id immediately.
// One active rebuild at a time: a second trigger while one runs returns
// domain.ErrReindexRunning (the runs would compete for index write
// capacity, not corrupt anything).
func (s *Service) Start(ctx context.Context) (domain.ReindexTask, error) {
	if s.registry.anyRunning() {
		return domain.ReindexTask{}, domain.ErrReindexRunning
	}

	total, err := s.catalog.Count(ctx)
	if err != nil {
		return domain.ReindexTask{}, fmt.Errorf("count catalog: %w", err)
	}

	task := domain.ReindexTask{
		ID:         uuid.NewString(),
		Status:     domain.TaskPending,
		TotalCount: total,
		StartedAt:  time.Now(),
	}

	// The worker outlives the trigger request, so it gets its own context.
	workerCtx, cancel := context.WithCancel(context.Background())
	s.registry.put(task, cancel)

	go s.run(workerCtx, task.ID)

	return task, nil
}

// Status returns a snapshot of the task, or domain.ErrTaskNotFound.
func (s *Service) Status(id string) (domain.ReindexTask, error) {
	task, ok := s.registry.get(id)
	if !ok {
		return domain.ReindexTask{}, domain.ErrTaskNotFound
	}
	return task, nil
}

// Cancel requests cooperative cancellation. The task transitions to
// failed with a "cancelled by caller" error once the worker observes it.
func (s *Service) Cancel(id string) error {
	task, ok := s.registry.get(id)
	if !ok {
		return domain.ErrTaskNotFound
	}
	if task.Status.Terminal() {
		return nil
	}
	if cancel, ok := s.registry.cancelFunc(id); ok && cancel != nil {
		cancel()
	}
	return nil
}

// run is the worker loop: page through the catalog by ascending id,
// embed each product's indexable text, delete the stale entry and upsert
// the fresh one. Cancellation is checked between items.
func (s *Service) run(ctx context.Context, id string) {
	log := s.logger.With(zap.String("task_id", id))
	ctx = logger.ContextWithLogger(ctx, log)

	s.registry.update(id, func(t *domain.ReindexTask) {
		t.Status = domain.TaskRunning
	})
	log.Info("reindex started")

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			s.finish(id, domain.TaskFailed, domain.ErrReindexCancelled.Error())
			log.Info("reindex cancelled")
			return
		}

		page, err := s.catalog.ListPage(ctx, afterID, s.pageSize)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.finish(id, domain.TaskFailed, domain.ErrReindexCancelled.Error())
				log.Info("reindex cancelled")
				return
			}
			s.finish(id, domain.TaskFailed, err.Error())
			log.Error("reindex failed listing catalog", zap.Error(err))
			return
		}
		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			if err := ctx.Err(); err != nil {
				s.finish(id, domain.TaskFailed, domain.ErrReindexCancelled.Error())
				log.Info("reindex cancelled")
				return
			}

			if err := s.indexOne(ctx, rec); err != nil {
				if errors.Is(err, context.Canceled) {
					s.finish(id, domain.TaskFailed, domain.ErrReindexCancelled.Error())
					log.Info("reindex cancelled")
					return
				}
				metrics.ReindexItemsTotal.WithLabelValues("failed").Inc()
				log.Warn("product skipped", zap.Int64("product_id", rec.ID), zap.Error(err))
				s.registry.update(id, func(t *domain.ReindexTask) {
					t.ProcessedCount++
					t.FailedCount++
					t.LastError = err.Error()
				})
			} else {
				metrics.ReindexItemsTotal.WithLabelValues("indexed").Inc()
				s.registry.update(id, func(t *domain.ReindexTask) {
					t.ProcessedCount++
				})
			}
			afterID = rec.ID
		}
	}

	s.finish(id, domain.TaskCompleted, "")
	task, _ := s.registry.get(id)
	log.Info("reindex completed",
		zap.Int("processed", task.ProcessedCount),
		zap.Int("failed", task.FailedCount))
}

// indexOne refreshes a single product: embed, drop the stale entry, write
// the new one. Delete of a missing entry is a no-op by contract.
func (s *Service) indexOne(ctx context.Context, rec domain.ProductRecord) error {
	vec, err := s.embedder.EmbedText(ctx, rec.IndexableText())
	if err != nil {
		return fmt.Errorf("embed product %d: %w", rec.ID, err)
	}
	if err := s.index.Delete(ctx, rec.ID); err != nil {
		return fmt.Errorf("delete stale entry %d: %w", rec.ID, err)
	}
	if err := s.index.Upsert(ctx, rec.ID, vec, rec.IndexableText()); err != nil {
		return fmt.Errorf("upsert entry %d: %w", rec.ID, err)
	}
	return nil
}

func (s *Service) finish(id string, status domain.TaskStatus, lastErr string) {
	s.registry.update(id, func(t *domain.ReindexTask) {
		t.Status = status
		if lastErr != "" {
			t.LastError = lastErr
		}
		t.FinishedAt = time.Now()
	})
}
