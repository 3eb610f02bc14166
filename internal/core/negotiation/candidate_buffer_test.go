package negotiation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateBuffer_DequeuePreservesArrivalOrder(t *testing.T) {
	buf := NewCandidateBuffer()
	for i := 0; i < 5; i++ {
		buf.Enqueue(candidate(fmt.Sprintf("cand-%d", i)))
	}
	assert.Equal(t, 5, buf.Len())

	drained := buf.DequeueAll()
	for i, cand := range drained {
		assert.Equal(t, fmt.Sprintf("cand-%d", i), cand.Candidate)
	}
	assert.Zero(t, buf.Len())
}

func TestCandidateBuffer_DequeueAllOnEmpty(t *testing.T) {
	buf := NewCandidateBuffer()
	assert.Empty(t, buf.DequeueAll())
}

func TestCandidateBuffer_Clear(t *testing.T) {
	buf := NewCandidateBuffer()
	buf.Enqueue(candidate("cand-1"))
	buf.Enqueue(candidate("cand-2"))

	buf.Clear()

	assert.Zero(t, buf.Len())
	assert.Empty(t, buf.DequeueAll())
}
