package memory

import (
	"context"
	"sync"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
)

// maxReportsPerCall bounds the in-memory history per call.
const maxReportsPerCall = 1000

type MemoryQualityRepository struct {
	reports map[domain.CallID][]*domain.CallQualityReport
	mu      sync.RWMutex
}

func NewMemoryQualityRepository() ports.QualityMetricsRepository {
	return &MemoryQualityRepository{
		reports: make(map[domain.CallID][]*domain.CallQualityReport),
	}
}

func (r *MemoryQualityRepository) Save(ctx context.Context, report *domain.CallQualityReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *report
	reports := append(r.reports[report.CallID], &clone)
	if len(reports) > maxReportsPerCall {
		reports = reports[len(reports)-maxReportsPerCall:]
	}
	r.reports[report.CallID] = reports
	return nil
}

func (r *MemoryQualityRepository) ListByCall(ctx context.Context, callID domain.CallID) ([]*domain.CallQualityReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.reports[callID]
	reports := make([]*domain.CallQualityReport, len(stored))
	for i, report := range stored {
		clone := *report
		reports[i] = &clone
	}
	return reports, nil
}
