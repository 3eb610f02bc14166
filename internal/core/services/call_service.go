package services

import (
	"context"
	"fmt"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/utils"
)

type callService struct {
	callRepo ports.CallRepository
	metrics  ports.MetricsRecorder
}

func NewCallService(callRepo ports.CallRepository, metrics ports.MetricsRecorder) ports.CallService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &callService{
		callRepo: callRepo,
		metrics:  metrics,
	}
}

func (s *callService) CreateCall(ctx context.Context, initiator domain.ParticipantID, callType domain.CallType) (*domain.CallSession, error) {
	call := &domain.CallSession{
		ID:        domain.CallID(utils.GenerateCallID()),
		Initiator: initiator,
		Type:      callType,
		Status:    domain.CallStatusWaiting,
		StartedAt: time.Now(),
		Participants: []domain.CallParticipant{
			{
				Participant: domain.Participant{ID: initiator},
				JoinedAt:    time.Now(),
				Active:      true,
			},
		},
	}

	if err := s.callRepo.Create(ctx, call); err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}

	s.metrics.CallStarted(string(callType))
	return call, nil
}

func (s *callService) GetCall(ctx context.Context, id domain.CallID) (*domain.CallSession, error) {
	return s.callRepo.GetByID(ctx, id)
}

func (s *callService) JoinCall(ctx context.Context, id domain.CallID, participant domain.Participant) error {
	call, err := s.callRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if call.Status == domain.CallStatusEnded || call.Status == domain.CallStatusMissed {
		return domain.ErrCallEnded
	}

	// Re-joining a call a participant already left reactivates the
	// existing entry instead of appending a duplicate.
	found := false
	for i := range call.Participants {
		if call.Participants[i].ID == participant.ID {
			call.Participants[i].Active = true
			call.Participants[i].LeftAt = nil
			call.Participants[i].JoinedAt = time.Now()
			call.Participants[i].DisplayName = participant.DisplayName
			found = true
			break
		}
	}
	if !found {
		call.Participants = append(call.Participants, domain.CallParticipant{
			Participant: participant,
			JoinedAt:    time.Now(),
			Active:      true,
		})
	}

	// A second active participant moves the call from waiting/ringing to active.
	if len(call.ActiveParticipants()) >= 2 && call.Status != domain.CallStatusActive {
		call.Status = domain.CallStatusActive
	}

	if err := s.callRepo.Update(ctx, call); err != nil {
		return fmt.Errorf("failed to update call: %w", err)
	}

	s.metrics.ParticipantJoined(string(id))
	return nil
}

func (s *callService) LeaveCall(ctx context.Context, id domain.CallID, participantID domain.ParticipantID) error {
	call, err := s.callRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	found := false
	now := time.Now()
	for i := range call.Participants {
		if call.Participants[i].ID == participantID && call.Participants[i].Active {
			call.Participants[i].Active = false
			call.Participants[i].LeftAt = &now
			found = true
			break
		}
	}
	if !found {
		return domain.ErrParticipantNotFound
	}

	// Last participant out ends the call.
	if len(call.ActiveParticipants()) == 0 && call.Status != domain.CallStatusEnded {
		call.Status = domain.CallStatusEnded
		call.EndedAt = &now
		s.metrics.CallEnded(string(call.Type), now.Sub(call.StartedAt))
	}

	if err := s.callRepo.Update(ctx, call); err != nil {
		return fmt.Errorf("failed to update call: %w", err)
	}

	s.metrics.ParticipantLeft(string(id))
	return nil
}

func (s *callService) EndCall(ctx context.Context, id domain.CallID) error {
	call, err := s.callRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if call.Status == domain.CallStatusEnded {
		return nil
	}

	now := time.Now()
	// A call ended before anyone else joined is recorded as missed.
	if call.Status == domain.CallStatusWaiting || call.Status == domain.CallStatusRinging {
		call.Status = domain.CallStatusMissed
	} else {
		call.Status = domain.CallStatusEnded
	}
	call.EndedAt = &now
	for i := range call.Participants {
		if call.Participants[i].Active {
			call.Participants[i].Active = false
			call.Participants[i].LeftAt = &now
		}
	}

	if err := s.callRepo.Update(ctx, call); err != nil {
		return fmt.Errorf("failed to update call: %w", err)
	}

	s.metrics.CallEnded(string(call.Type), now.Sub(call.StartedAt))
	return nil
}

func (s *callService) ListActiveCalls(ctx context.Context) ([]*domain.CallSession, error) {
	return s.callRepo.ListActive(ctx)
}
