package domain

import "errors"

var (
	ErrCallNotFound        = errors.New("call not found")
	ErrCallEnded           = errors.New("call already ended")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrUnknownSignalKind   = errors.New("unknown signal kind")

	// ErrInvalidNegotiationState rejects an operation the current
	// negotiation state cannot accept; the caller must not retry blindly.
	ErrInvalidNegotiationState = errors.New("invalid negotiation state")

	// ErrNegotiationDesync marks a message that proves the two sides
	// disagree about the exchange; the link needs recovery.
	ErrNegotiationDesync = errors.New("negotiation out of sync")

	ErrLinkClosed = errors.New("peer link closed")
)
