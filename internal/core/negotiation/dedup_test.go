package negotiation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
)

func TestMessageDedup_DetectsRepeat(t *testing.T) {
	d := NewMessageDedup()

	assert.False(t, d.Insert(domain.KindOffer, "bob", []byte("sdp-1")))
	assert.True(t, d.Insert(domain.KindOffer, "bob", []byte("sdp-1")))
}

func TestMessageDedup_DistinguishesKindSenderPayload(t *testing.T) {
	d := NewMessageDedup()
	d.Insert(domain.KindOffer, "bob", []byte("sdp-1"))

	assert.False(t, d.Insert(domain.KindAnswer, "bob", []byte("sdp-1")), "different kind")
	assert.False(t, d.Insert(domain.KindOffer, "carol", []byte("sdp-1")), "different sender")
	assert.False(t, d.Insert(domain.KindOffer, "bob", []byte("sdp-2")), "different payload")
}

func TestMessageDedup_EvictsOldestAtCapacity(t *testing.T) {
	d := NewMessageDedup()

	for i := 0; i < dedupCapacity; i++ {
		d.Insert(domain.KindCandidate, "bob", []byte(fmt.Sprintf("cand-%d", i)))
	}
	assert.Equal(t, dedupCapacity, d.Len())

	// One past capacity pushes out the first fingerprint, so the
	// original message reads as new again.
	d.Insert(domain.KindCandidate, "bob", []byte("cand-overflow"))
	assert.Equal(t, dedupCapacity, d.Len())
	assert.False(t, d.Insert(domain.KindCandidate, "bob", []byte("cand-0")))

	// The most recent entries are still remembered.
	assert.True(t, d.Insert(domain.KindCandidate, "bob", []byte("cand-overflow")))
}
