package negotiation

import (
	"hash/fnv"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
)

// dedupCapacity bounds the per-peer cache of recent message fingerprints.
// Eviction is oldest-first, a cheap bound rather than an exact LRU.
const dedupCapacity = 10

// MessageDedup absorbs exact repeats of offer/answer/candidate messages
// the relay redelivered. One instance per peer link, discarded with it.
type MessageDedup struct {
	keys []uint64
}

func NewMessageDedup() *MessageDedup {
	return &MessageDedup{keys: make([]uint64, 0, dedupCapacity)}
}

// Insert records the fingerprint of (kind, sender, payload) and reports
// whether it was already present.
func (d *MessageDedup) Insert(kind domain.SignalKind, sender domain.ParticipantID, payload []byte) bool {
	key := fingerprint(kind, sender, payload)
	for _, k := range d.keys {
		if k == key {
			return true
		}
	}
	d.keys = append(d.keys, key)
	if len(d.keys) > dedupCapacity {
		d.keys = d.keys[1:]
	}
	return false
}

func (d *MessageDedup) Len() int {
	return len(d.keys)
}

func fingerprint(kind domain.SignalKind, sender domain.ParticipantID, payload []byte) uint64 {
	h := fnv.New64a()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(sender))
	h.Write([]byte{0})
	h.Write(payload)
	return h.Sum64()
}
