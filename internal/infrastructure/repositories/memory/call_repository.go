package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
)

type MemoryCallRepository struct {
	calls map[domain.CallID]*domain.CallSession
	mu    sync.RWMutex
}

func NewMemoryCallRepository() ports.CallRepository {
	return &MemoryCallRepository{
		calls: make(map[domain.CallID]*domain.CallSession),
	}
}

func (r *MemoryCallRepository) Create(ctx context.Context, call *domain.CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.calls[call.ID]; exists {
		return fmt.Errorf("call already exists: %s", call.ID)
	}

	r.calls[call.ID] = cloneCall(call)
	return nil
}

func (r *MemoryCallRepository) GetByID(ctx context.Context, id domain.CallID) (*domain.CallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	call, exists := r.calls[id]
	if !exists {
		return nil, domain.ErrCallNotFound
	}

	return cloneCall(call), nil
}

func (r *MemoryCallRepository) Update(ctx context.Context, call *domain.CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.calls[call.ID]; !exists {
		return domain.ErrCallNotFound
	}

	r.calls[call.ID] = cloneCall(call)
	return nil
}

func (r *MemoryCallRepository) Delete(ctx context.Context, id domain.CallID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.calls[id]; !exists {
		return domain.ErrCallNotFound
	}

	delete(r.calls, id)
	return nil
}

func (r *MemoryCallRepository) ListActive(ctx context.Context) ([]*domain.CallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*domain.CallSession
	for _, call := range r.calls {
		if call.Status == domain.CallStatusActive ||
			call.Status == domain.CallStatusWaiting ||
			call.Status == domain.CallStatusRinging {
			active = append(active, cloneCall(call))
		}
	}

	return active, nil
}

// cloneCall copies a session so callers cannot mutate stored state.
func cloneCall(call *domain.CallSession) *domain.CallSession {
	clone := *call
	clone.Participants = make([]domain.CallParticipant, len(call.Participants))
	copy(clone.Participants, call.Participants)
	return &clone
}
