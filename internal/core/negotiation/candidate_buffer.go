package negotiation

import (
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
)

type bufferedCandidate struct {
	cand       domain.ICECandidate
	enqueuedAt time.Time
}

// CandidateBuffer holds connectivity candidates that arrived before the
// owning link had a remote description. Entries leave the buffer exactly
// once, in FIFO order. The buffer is confined to the call's event
// goroutine and needs no locking.
type CandidateBuffer struct {
	entries []bufferedCandidate
}

func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{}
}

func (b *CandidateBuffer) Enqueue(cand domain.ICECandidate) {
	b.entries = append(b.entries, bufferedCandidate{cand: cand, enqueuedAt: time.Now()})
}

// DequeueAll returns every buffered candidate in enqueue order and
// empties the buffer.
func (b *CandidateBuffer) DequeueAll() []domain.ICECandidate {
	if len(b.entries) == 0 {
		return nil
	}
	out := make([]domain.ICECandidate, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.cand
	}
	b.entries = nil
	return out
}

func (b *CandidateBuffer) Clear() {
	b.entries = nil
}

func (b *CandidateBuffer) Len() int {
	return len(b.entries)
}
