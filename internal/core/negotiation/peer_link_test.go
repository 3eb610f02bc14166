package negotiation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
)

func newTestLink(localID, remoteID domain.ParticipantID) (*PeerLink, *fakeConn, *fakeChannel) {
	conn := newFakeConn()
	channel := &fakeChannel{}
	link := NewPeerLink("call-1", localID, remoteID, conn, channel, zap.NewNop().Sugar(), ports.NopMetrics{})
	return link, conn, channel
}

func TestIsInitiator_TieBreak(t *testing.T) {
	a, _, _ := newTestLink("alice", "bob")
	b, _, _ := newTestLink("bob", "alice")

	assert.True(t, a.IsInitiator(), "lexicographically smaller side initiates")
	assert.False(t, b.IsInitiator(), "larger side responds")
}

func TestStartOffer_EmitsOfferAndTransitions(t *testing.T) {
	link, conn, channel := newTestLink("alice", "bob")

	require.NoError(t, link.StartOffer(context.Background()))

	assert.Equal(t, domain.NegotiationHaveLocalOffer, link.State())
	require.Len(t, conn.localDescs, 1)
	assert.Equal(t, domain.SDPTypeOffer, conn.localDescs[0].Type)

	env, ok := channel.lastTo("bob", domain.KindOffer)
	require.True(t, ok, "offer should be sent to the remote")
	desc, err := env.DecodeSession()
	require.NoError(t, err)
	assert.Equal(t, conn.localDescs[0].SDP, desc.SDP)
}

func TestStartOffer_RejectedWhilePending(t *testing.T) {
	link, _, _ := newTestLink("alice", "bob")

	require.NoError(t, link.StartOffer(context.Background()))
	err := link.StartOffer(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidNegotiationState)
}

func TestHandleOffer_ResponderAnswers(t *testing.T) {
	link, conn, channel := newTestLink("bob", "alice")

	require.NoError(t, link.HandleOffer(context.Background(), offerDesc(1)))

	assert.Equal(t, domain.NegotiationStable, link.State())
	require.Len(t, conn.remoteDescs, 1)
	require.Len(t, conn.localDescs, 1)
	assert.Equal(t, domain.SDPTypeAnswer, conn.localDescs[0].Type)

	_, ok := channel.lastTo("alice", domain.KindAnswer)
	assert.True(t, ok, "answer should be sent back")
}

func TestHandleOffer_GlareInitiatorDiscards(t *testing.T) {
	link, conn, channel := newTestLink("alice", "bob")

	require.NoError(t, link.StartOffer(context.Background()))
	require.NoError(t, link.HandleOffer(context.Background(), offerDesc(1)))

	// The colliding offer is dropped: no remote description applied, our
	// own offer stays pending.
	assert.Equal(t, domain.NegotiationHaveLocalOffer, link.State())
	assert.Empty(t, conn.remoteDescs)
	assert.Zero(t, channel.countTo("bob", domain.KindAnswer))
}

func TestHandleOffer_GlareResponderRollsBackAndAnswers(t *testing.T) {
	link, conn, channel := newTestLink("bob", "alice")

	require.NoError(t, link.StartOffer(context.Background()))
	require.NoError(t, link.HandleOffer(context.Background(), offerDesc(1)))

	assert.Equal(t, domain.NegotiationStable, link.State())
	require.Len(t, conn.remoteDescs, 1)
	assert.Equal(t, domain.SDPTypeOffer, conn.remoteDescs[0].Type)
	assert.Equal(t, 1, channel.countTo("alice", domain.KindAnswer))
}

func TestHandleAnswer_CompletesExchange(t *testing.T) {
	link, conn, _ := newTestLink("alice", "bob")

	require.NoError(t, link.StartOffer(context.Background()))
	require.NoError(t, link.HandleAnswer(context.Background(), answerDesc(1)))

	assert.Equal(t, domain.NegotiationStable, link.State())
	require.Len(t, conn.remoteDescs, 1)
	assert.Equal(t, domain.SDPTypeAnswer, conn.remoteDescs[0].Type)
}

func TestHandleAnswer_InStableIsIgnored(t *testing.T) {
	link, conn, _ := newTestLink("alice", "bob")

	require.NoError(t, link.StartOffer(context.Background()))
	require.NoError(t, link.HandleAnswer(context.Background(), answerDesc(1)))
	require.NoError(t, link.HandleAnswer(context.Background(), answerDesc(1)))

	assert.Len(t, conn.remoteDescs, 1, "duplicate answer must not be re-applied")
}

func TestHandleAnswer_UnsolicitedIsDesync(t *testing.T) {
	link, _, _ := newTestLink("alice", "bob")

	err := link.HandleAnswer(context.Background(), answerDesc(1))
	assert.ErrorIs(t, err, domain.ErrNegotiationDesync)
}

func TestHandleCandidate_BufferedUntilRemoteDescription(t *testing.T) {
	link, conn, _ := newTestLink("bob", "alice")

	require.NoError(t, link.HandleCandidate(context.Background(), candidate("cand-1")))
	require.NoError(t, link.HandleCandidate(context.Background(), candidate("cand-2")))
	assert.Empty(t, conn.appliedCandidates(), "no remote description yet")

	require.NoError(t, link.HandleOffer(context.Background(), offerDesc(1)))

	applied := conn.appliedCandidates()
	require.Len(t, applied, 2)
	assert.Equal(t, "cand-1", applied[0].Candidate)
	assert.Equal(t, "cand-2", applied[1].Candidate)

	// Later candidates apply immediately.
	require.NoError(t, link.HandleCandidate(context.Background(), candidate("cand-3")))
	assert.Len(t, conn.appliedCandidates(), 3)
}

func TestSeen_DeduplicatesRepeats(t *testing.T) {
	link, _, _ := newTestLink("alice", "bob")

	env := domain.NewSessionEnvelope(domain.KindOffer, "call-1", "bob", "alice", offerDesc(1))
	assert.False(t, link.Seen(env), "first delivery is new")
	assert.True(t, link.Seen(env), "redelivery is a duplicate")

	other := domain.NewSessionEnvelope(domain.KindOffer, "call-1", "bob", "alice", offerDesc(2))
	assert.False(t, link.Seen(other), "different payload is not a duplicate")

	join := domain.NewJoinEnvelope("call-1", "bob", "Bob")
	assert.False(t, link.Seen(join))
	assert.False(t, link.Seen(join), "membership envelopes are never deduplicated")
}

func TestLocalCandidates_SentToRemote(t *testing.T) {
	link, conn, channel := newTestLink("alice", "bob")
	_ = link

	conn.onCandidate(candidate("local-cand"))

	env, ok := channel.lastTo("bob", domain.KindCandidate)
	require.True(t, ok)
	cand, err := env.DecodeCandidate()
	require.NoError(t, err)
	assert.Equal(t, "local-cand", cand.Candidate)
}

func TestClose_IsIdempotentAndRejectsFurtherWork(t *testing.T) {
	link, conn, _ := newTestLink("alice", "bob")

	require.NoError(t, link.HandleCandidate(context.Background(), candidate("cand-1")))

	link.Close()
	link.Close()

	assert.True(t, conn.isClosed())
	assert.Equal(t, domain.NegotiationClosed, link.State())
	assert.Equal(t, domain.ConnectionClosed, link.ConnectionState())

	assert.ErrorIs(t, link.StartOffer(context.Background()), domain.ErrLinkClosed)
	assert.ErrorIs(t, link.HandleOffer(context.Background(), offerDesc(1)), domain.ErrLinkClosed)
	assert.ErrorIs(t, link.HandleAnswer(context.Background(), answerDesc(1)), domain.ErrLinkClosed)
	assert.ErrorIs(t, link.HandleCandidate(context.Background(), candidate("c")), domain.ErrLinkClosed)
}

func TestRenegotiation_FromStable(t *testing.T) {
	link, _, channel := newTestLink("alice", "bob")

	require.NoError(t, link.StartOffer(context.Background()))
	require.NoError(t, link.HandleAnswer(context.Background(), answerDesc(1)))
	require.Equal(t, domain.NegotiationStable, link.State())

	require.NoError(t, link.StartOffer(context.Background()))
	assert.Equal(t, domain.NegotiationHaveLocalOffer, link.State())
	assert.Equal(t, 2, channel.countTo("bob", domain.KindOffer))
}
