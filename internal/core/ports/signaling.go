package ports

import (
	"context"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
)

// SignalingChannel carries setup envelopes between participants of one
// call. Send is fire-and-forget: delivery is at-least-once and ordered
// per sender, no acknowledgement is awaited.
type SignalingChannel interface {
	Send(ctx context.Context, env domain.Envelope) error
	Close() error
}

// EnvelopeHandler receives inbound envelopes from a signaling transport.
type EnvelopeHandler interface {
	HandleInbound(env domain.Envelope)
}
