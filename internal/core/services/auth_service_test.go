package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/repositories/memory"
)

const testSecret = "test-secret-32-bytes-long-enough"

func TestGenerateToken_RoundTrip(t *testing.T) {
	svc := NewAuthService(testSecret, time.Hour, 24*time.Hour, nil)

	token, err := svc.GenerateToken("user-1", "alice")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewAuthService(testSecret, -time.Minute, 24*time.Hour, nil)

	token, err := svc.GenerateToken("user-1", "alice")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer := NewAuthService(testSecret, time.Hour, 24*time.Hour, nil)
	verifier := NewAuthService("a-completely-different-secret!!!", time.Hour, 24*time.Hour, nil)

	token, err := issuer.GenerateToken("user-1", "alice")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewAuthService(testSecret, time.Hour, 24*time.Hour, nil)

	_, err := svc.ValidateToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	svc := NewAuthService(testSecret, time.Hour, 24*time.Hour, nil)

	token, err := svc.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), claims.UserID)
}

func TestCheckCallAccess(t *testing.T) {
	callSvc := NewCallService(memory.NewMemoryCallRepository(), nil)
	svc := NewAuthService(testSecret, time.Hour, 24*time.Hour, callSvc)
	ctx := context.Background()

	call, err := callSvc.CreateCall(ctx, "alice", domain.CallTypeVideo)
	require.NoError(t, err)
	require.NoError(t, callSvc.JoinCall(ctx, call.ID, domain.Participant{ID: "bob"}))

	assert.NoError(t, svc.CheckCallAccess(ctx, "alice", call.ID), "initiator")
	assert.NoError(t, svc.CheckCallAccess(ctx, "bob", call.ID), "participant")
	assert.ErrorIs(t, svc.CheckCallAccess(ctx, "mallory", call.ID), ErrUnauthorized)
	assert.ErrorIs(t, svc.CheckCallAccess(ctx, "alice", "call_missing"), domain.ErrCallNotFound)
}

func TestCheckCallAccess_NoCallServiceSkipsCheck(t *testing.T) {
	svc := NewAuthService(testSecret, time.Hour, 24*time.Hour, nil)

	assert.NoError(t, svc.CheckCallAccess(context.Background(), "anyone", "any-call"))
}
