package services

import (
	"context"
	"fmt"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/cache"
)

// CachedCallService wraps CallService with caching
type CachedCallService struct {
	baseService ports.CallService
	cache       *cache.CacheWithFallback
	callTTL     time.Duration
}

// NewCachedCallService creates a new cached call service
func NewCachedCallService(baseService ports.CallService, callTTL time.Duration) ports.CallService {
	return &CachedCallService{
		baseService: baseService,
		cache:       cache.NewCacheWithFallback(callTTL),
		callTTL:     callTTL,
	}
}

// CreateCall creates a call and invalidates the list cache
func (s *CachedCallService) CreateCall(ctx context.Context, initiator domain.ParticipantID, callType domain.CallType) (*domain.CallSession, error) {
	call, err := s.baseService.CreateCall(ctx, initiator, callType)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate("calls:list:")

	return call, nil
}

// GetCall gets a call with caching
func (s *CachedCallService) GetCall(ctx context.Context, id domain.CallID) (*domain.CallSession, error) {
	cacheKey := fmt.Sprintf("call:%s", id)

	value, err := s.cache.GetOrSet(ctx, cacheKey, func(ctx context.Context) (interface{}, error) {
		return s.baseService.GetCall(ctx, id)
	}, s.callTTL)

	if err != nil {
		return nil, err
	}

	return value.(*domain.CallSession), nil
}

// JoinCall joins a call and invalidates relevant caches
func (s *CachedCallService) JoinCall(ctx context.Context, id domain.CallID, participant domain.Participant) error {
	err := s.baseService.JoinCall(ctx, id, participant)
	if err != nil {
		return err
	}

	s.cache.Invalidate(fmt.Sprintf("call:%s", id))
	s.cache.Invalidate("calls:list:")

	return nil
}

// LeaveCall leaves a call and invalidates relevant caches
func (s *CachedCallService) LeaveCall(ctx context.Context, id domain.CallID, participantID domain.ParticipantID) error {
	err := s.baseService.LeaveCall(ctx, id, participantID)
	if err != nil {
		return err
	}

	s.cache.Invalidate(fmt.Sprintf("call:%s", id))
	s.cache.Invalidate("calls:list:")

	return nil
}

// EndCall ends a call and invalidates relevant caches
func (s *CachedCallService) EndCall(ctx context.Context, id domain.CallID) error {
	err := s.baseService.EndCall(ctx, id)
	if err != nil {
		return err
	}

	s.cache.Invalidate(fmt.Sprintf("call:%s", id))
	s.cache.Invalidate("calls:list:")

	return nil
}

// ListActiveCalls lists active calls with caching
func (s *CachedCallService) ListActiveCalls(ctx context.Context) ([]*domain.CallSession, error) {
	cacheKey := "calls:list:active"

	value, err := s.cache.GetOrSet(ctx, cacheKey, func(ctx context.Context) (interface{}, error) {
		return s.baseService.ListActiveCalls(ctx)
	}, s.callTTL)

	if err != nil {
		return nil, err
	}

	return value.([]*domain.CallSession), nil
}
