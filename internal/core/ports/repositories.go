package ports

import (
	"context"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
)

type CallRepository interface {
	Create(ctx context.Context, call *domain.CallSession) error
	GetByID(ctx context.Context, id domain.CallID) (*domain.CallSession, error)
	Update(ctx context.Context, call *domain.CallSession) error
	Delete(ctx context.Context, id domain.CallID) error
	ListActive(ctx context.Context) ([]*domain.CallSession, error)
}

type QualityMetricsRepository interface {
	Save(ctx context.Context, report *domain.CallQualityReport) error
	ListByCall(ctx context.Context, callID domain.CallID) ([]*domain.CallQualityReport, error)
}
