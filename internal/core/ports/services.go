package ports

import (
	"context"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
)

type CallService interface {
	CreateCall(ctx context.Context, initiator domain.ParticipantID, callType domain.CallType) (*domain.CallSession, error)
	GetCall(ctx context.Context, id domain.CallID) (*domain.CallSession, error)
	JoinCall(ctx context.Context, id domain.CallID, participant domain.Participant) error
	LeaveCall(ctx context.Context, id domain.CallID, participantID domain.ParticipantID) error
	EndCall(ctx context.Context, id domain.CallID) error
	ListActiveCalls(ctx context.Context) ([]*domain.CallSession, error)
}

type QualityService interface {
	OptimalQuality(bandwidthKbps int, cpuUsagePercent float64) domain.QualityLevel
	ConstraintsFor(level domain.QualityLevel) domain.MediaConstraints
	RecordReport(ctx context.Context, report *domain.CallQualityReport) error
}
