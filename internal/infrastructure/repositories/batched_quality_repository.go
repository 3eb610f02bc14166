package repositories

import (
	"context"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/batch"

	"go.uber.org/zap"
)

// BatchedQualityRepository buffers quality report writes and flushes
// them in batches. Reports arrive once per participant every few
// seconds, so per-report round trips to storage are wasteful.
type BatchedQualityRepository struct {
	inner   ports.QualityMetricsRepository
	batcher *batch.Batcher
	logger  *zap.SugaredLogger
}

// NewBatchedQualityRepository wraps inner with write batching.
func NewBatchedQualityRepository(
	inner ports.QualityMetricsRepository,
	batchSize int,
	flushInterval time.Duration,
	logger *zap.SugaredLogger,
) *BatchedQualityRepository {
	r := &BatchedQualityRepository{
		inner:  inner,
		logger: logger,
	}
	r.batcher = batch.NewBatcher(batchSize, flushInterval, r)
	return r
}

var _ ports.QualityMetricsRepository = (*BatchedQualityRepository)(nil)

type saveReportOp struct {
	repo   ports.QualityMetricsRepository
	report *domain.CallQualityReport
}

func (op *saveReportOp) Execute(ctx context.Context) error {
	return op.repo.Save(ctx, op.report)
}

// Save enqueues the report. The write becomes visible to ListByCall
// after the next flush.
func (r *BatchedQualityRepository) Save(ctx context.Context, report *domain.CallQualityReport) error {
	return r.batcher.Add(&saveReportOp{repo: r.inner, report: report})
}

func (r *BatchedQualityRepository) ListByCall(ctx context.Context, callID domain.CallID) ([]*domain.CallQualityReport, error) {
	return r.inner.ListByCall(ctx, callID)
}

// ProcessBatch implements batch.Processor.
func (r *BatchedQualityRepository) ProcessBatch(ctx context.Context, operations []batch.Operation) error {
	var failed int
	for _, op := range operations {
		if err := op.Execute(ctx); err != nil {
			failed++
		}
	}
	if failed > 0 {
		r.logger.Warnw("some quality reports failed to persist",
			"failed", failed, "total", len(operations))
	}
	return nil
}

// Flush forces pending writes through. Used by tests and shutdown.
func (r *BatchedQualityRepository) Flush(ctx context.Context) error {
	return r.batcher.Flush(ctx)
}

// Close stops the batcher, flushing whatever is still pending.
func (r *BatchedQualityRepository) Close() {
	r.batcher.Stop()
}
