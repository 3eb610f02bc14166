package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/repositories/memory"
)

func newTestCallService() *callService {
	return NewCallService(memory.NewMemoryCallRepository(), nil).(*callService)
}

func participant(id, name string) domain.Participant {
	return domain.Participant{ID: domain.ParticipantID(id), DisplayName: name}
}

func TestCreateCall_StartsWaitingWithInitiator(t *testing.T) {
	svc := newTestCallService()
	ctx := context.Background()

	call, err := svc.CreateCall(ctx, "alice", domain.CallTypeVideo)
	require.NoError(t, err)

	assert.Equal(t, domain.CallStatusWaiting, call.Status)
	assert.Equal(t, domain.ParticipantID("alice"), call.Initiator)
	require.Len(t, call.Participants, 1)
	assert.True(t, call.Participants[0].Active)

	stored, err := svc.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, call.ID, stored.ID)
}

func TestJoinCall_SecondParticipantActivatesCall(t *testing.T) {
	svc := newTestCallService()
	ctx := context.Background()

	call, err := svc.CreateCall(ctx, "alice", domain.CallTypeVideo)
	require.NoError(t, err)

	require.NoError(t, svc.JoinCall(ctx, call.ID, participant("bob", "Bob")))

	updated, err := svc.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusActive, updated.Status)
	assert.Len(t, updated.ActiveParticipants(), 2)
}

func TestJoinCall_RejoinReactivatesExistingEntry(t *testing.T) {
	svc := newTestCallService()
	ctx := context.Background()

	call, err := svc.CreateCall(ctx, "alice", domain.CallTypeVideo)
	require.NoError(t, err)
	require.NoError(t, svc.JoinCall(ctx, call.ID, participant("bob", "Bob")))
	require.NoError(t, svc.LeaveCall(ctx, call.ID, "bob"))

	require.NoError(t, svc.JoinCall(ctx, call.ID, participant("bob", "Bobby")))

	updated, err := svc.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.Len(t, updated.Participants, 2, "rejoin must not append a duplicate entry")

	for _, p := range updated.Participants {
		if p.ID == "bob" {
			assert.True(t, p.Active)
			assert.Nil(t, p.LeftAt)
			assert.Equal(t, "Bobby", p.DisplayName)
		}
	}
}

func TestJoinCall_EndedCallRejected(t *testing.T) {
	svc := newTestCallService()
	ctx := context.Background()

	call, err := svc.CreateCall(ctx, "alice", domain.CallTypeVideo)
	require.NoError(t, err)
	require.NoError(t, svc.JoinCall(ctx, call.ID, participant("bob", "Bob")))
	require.NoError(t, svc.EndCall(ctx, call.ID))

	err = svc.JoinCall(ctx, call.ID, participant("carol", "Carol"))
	assert.ErrorIs(t, err, domain.ErrCallEnded)
}

func TestJoinCall_UnknownCall(t *testing.T) {
	svc := newTestCallService()

	err := svc.JoinCall(context.Background(), "call_missing", participant("bob", "Bob"))
	assert.ErrorIs(t, err, domain.ErrCallNotFound)
}

func TestLeaveCall_LastOneOutEndsCall(t *testing.T) {
	svc := newTestCallService()
	ctx := context.Background()

	call, err := svc.CreateCall(ctx, "alice", domain.CallTypeVideo)
	require.NoError(t, err)
	require.NoError(t, svc.JoinCall(ctx, call.ID, participant("bob", "Bob")))

	require.NoError(t, svc.LeaveCall(ctx, call.ID, "bob"))
	mid, err := svc.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusActive, mid.Status, "one participant remaining keeps the call up")

	require.NoError(t, svc.LeaveCall(ctx, call.ID, "alice"))
	final, err := svc.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusEnded, final.Status)
	require.NotNil(t, final.EndedAt)
}

func TestLeaveCall_NotAMember(t *testing.T) {
	svc := newTestCallService()
	ctx := context.Background()

	call, err := svc.CreateCall(ctx, "alice", domain.CallTypeVideo)
	require.NoError(t, err)

	err = svc.LeaveCall(ctx, call.ID, "stranger")
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
}

func TestEndCall_BeforeAnyoneJoinsIsMissed(t *testing.T) {
	svc := newTestCallService()
	ctx := context.Background()

	call, err := svc.CreateCall(ctx, "alice", domain.CallTypeVideo)
	require.NoError(t, err)

	require.NoError(t, svc.EndCall(ctx, call.ID))

	updated, err := svc.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusMissed, updated.Status)
	assert.Empty(t, updated.ActiveParticipants())
}

func TestEndCall_Idempotent(t *testing.T) {
	svc := newTestCallService()
	ctx := context.Background()

	call, err := svc.CreateCall(ctx, "alice", domain.CallTypeVideo)
	require.NoError(t, err)
	require.NoError(t, svc.JoinCall(ctx, call.ID, participant("bob", "Bob")))
	require.NoError(t, svc.EndCall(ctx, call.ID))

	assert.NoError(t, svc.EndCall(ctx, call.ID))
}

func TestListActiveCalls_ExcludesFinishedOnes(t *testing.T) {
	svc := newTestCallService()
	ctx := context.Background()

	waiting, err := svc.CreateCall(ctx, "alice", domain.CallTypeAudio)
	require.NoError(t, err)
	ended, err := svc.CreateCall(ctx, "bob", domain.CallTypeVideo)
	require.NoError(t, err)
	require.NoError(t, svc.EndCall(ctx, ended.ID))

	active, err := svc.ListActiveCalls(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, waiting.ID, active[0].ID)
}
