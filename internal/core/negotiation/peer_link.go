package negotiation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
)

// PeerLink drives the offer/answer exchange with one remote participant.
// It owns one connection primitive, one candidate buffer and one dedup
// cache; all three die with it. Methods are called from the call's event
// goroutine only.
type PeerLink struct {
	callID   domain.CallID
	localID  domain.ParticipantID
	remoteID domain.ParticipantID

	pc      ports.PeerConnection
	channel ports.SignalingChannel

	state                domain.NegotiationState
	connState            domain.ConnectionState
	hasRemoteDescription bool

	candidates *CandidateBuffer
	dedup      *MessageDedup

	logger  *zap.SugaredLogger
	metrics ports.MetricsRecorder

	closed bool
}

func NewPeerLink(
	callID domain.CallID,
	localID, remoteID domain.ParticipantID,
	pc ports.PeerConnection,
	channel ports.SignalingChannel,
	logger *zap.SugaredLogger,
	metrics ports.MetricsRecorder,
) *PeerLink {
	l := &PeerLink{
		callID:     callID,
		localID:    localID,
		remoteID:   remoteID,
		pc:         pc,
		channel:    channel,
		state:      domain.NegotiationIdle,
		connState:  domain.ConnectionNew,
		candidates: NewCandidateBuffer(),
		dedup:      NewMessageDedup(),
		logger:     logger,
		metrics:    metrics,
	}

	// Locally gathered candidates go straight out; the remote side does
	// its own buffering until it has our description.
	pc.OnICECandidate(func(cand domain.ICECandidate) {
		l.send(context.Background(), domain.NewCandidateEnvelope(l.callID, l.localID, l.remoteID, cand))
	})

	return l
}

func (l *PeerLink) RemoteID() domain.ParticipantID          { return l.remoteID }
func (l *PeerLink) State() domain.NegotiationState          { return l.state }
func (l *PeerLink) ConnectionState() domain.ConnectionState { return l.connState }
func (l *PeerLink) SetConnectionState(s domain.ConnectionState) {
	l.connState = s
}

// IsInitiator applies the pair tie-break: the lexicographically smaller
// identity initiates. Both sides compute this from the same two values,
// so they agree without coordination.
func (l *PeerLink) IsInitiator() bool {
	return l.localID < l.remoteID
}

// Seen consults the dedup cache for offer/answer/candidate envelopes,
// recording the fingerprint as a side effect.
func (l *PeerLink) Seen(env domain.Envelope) bool {
	switch env.Kind {
	case domain.KindOffer, domain.KindAnswer, domain.KindCandidate:
		return l.dedup.Insert(env.Kind, env.SenderID, env.Payload)
	default:
		return false
	}
}

// StartOffer produces and emits a local offer. Valid only from idle or
// stable; anything else is rejected so renegotiation cannot stack a
// second pending offer.
func (l *PeerLink) StartOffer(ctx context.Context) error {
	if l.closed {
		return domain.ErrLinkClosed
	}
	if l.state != domain.NegotiationIdle && l.state != domain.NegotiationStable {
		return fmt.Errorf("start offer in state %s: %w", l.state, domain.ErrInvalidNegotiationState)
	}

	offer, err := l.pc.CreateOffer(ctx)
	if err != nil {
		return fmt.Errorf("create offer for %s: %w", l.remoteID, err)
	}
	if err := l.pc.SetLocalDescription(ctx, offer); err != nil {
		return fmt.Errorf("set local offer for %s: %w", l.remoteID, err)
	}

	l.state = domain.NegotiationHaveLocalOffer
	l.send(ctx, domain.NewSessionEnvelope(domain.KindOffer, l.callID, l.localID, l.remoteID, offer))
	l.logger.Infow("sent offer", "call_id", l.callID, "remote_id", l.remoteID)
	return nil
}

// HandleOffer applies a remote offer. A collision with our own pending
// offer (glare) is resolved by the tie-break: the initiator discards the
// incoming offer, the responder rolls its own back and accepts.
func (l *PeerLink) HandleOffer(ctx context.Context, desc domain.SessionDescription) error {
	if l.closed {
		return domain.ErrLinkClosed
	}

	switch l.state {
	case domain.NegotiationIdle, domain.NegotiationStable:
		return l.acceptOffer(ctx, desc)

	case domain.NegotiationHaveLocalOffer:
		if l.IsInitiator() {
			// The remote side is expected to discard its own offer and
			// answer ours.
			l.logger.Infow("glare: discarding colliding offer",
				"call_id", l.callID, "remote_id", l.remoteID)
			l.metrics.RecordGlareResolved(true)
			return nil
		}
		l.logger.Infow("glare: rolling back local offer",
			"call_id", l.callID, "remote_id", l.remoteID)
		l.metrics.RecordGlareResolved(false)
		l.state = domain.NegotiationIdle
		return l.acceptOffer(ctx, desc)

	default:
		return fmt.Errorf("offer in state %s: %w", l.state, domain.ErrNegotiationDesync)
	}
}

func (l *PeerLink) acceptOffer(ctx context.Context, desc domain.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(ctx, desc); err != nil {
		return fmt.Errorf("set remote offer from %s: %w", l.remoteID, err)
	}
	l.hasRemoteDescription = true
	l.state = domain.NegotiationHaveRemoteOffer

	answer, err := l.pc.CreateAnswer(ctx)
	if err != nil {
		return fmt.Errorf("create answer for %s: %w", l.remoteID, err)
	}
	if err := l.pc.SetLocalDescription(ctx, answer); err != nil {
		return fmt.Errorf("set local answer for %s: %w", l.remoteID, err)
	}

	l.state = domain.NegotiationStable
	l.flushCandidates(ctx)
	l.send(ctx, domain.NewSessionEnvelope(domain.KindAnswer, l.callID, l.localID, l.remoteID, answer))
	l.logger.Infow("answered offer", "call_id", l.callID, "remote_id", l.remoteID)
	return nil
}

// HandleAnswer applies a remote answer to our pending offer. An answer in
// stable is an already-applied duplicate and is ignored; in any other
// state it proves desynchronization.
func (l *PeerLink) HandleAnswer(ctx context.Context, desc domain.SessionDescription) error {
	if l.closed {
		return domain.ErrLinkClosed
	}

	switch l.state {
	case domain.NegotiationHaveLocalOffer:
		if err := l.pc.SetRemoteDescription(ctx, desc); err != nil {
			return fmt.Errorf("set remote answer from %s: %w", l.remoteID, err)
		}
		l.hasRemoteDescription = true
		l.state = domain.NegotiationStable
		l.flushCandidates(ctx)
		l.logger.Infow("applied answer", "call_id", l.callID, "remote_id", l.remoteID)
		return nil

	case domain.NegotiationStable:
		l.logger.Debugw("ignoring duplicate answer",
			"call_id", l.callID, "remote_id", l.remoteID)
		return nil

	default:
		return fmt.Errorf("answer in state %s: %w", l.state, domain.ErrNegotiationDesync)
	}
}

// HandleCandidate applies a candidate immediately when the remote
// description is known, otherwise buffers it. An individual bad
// candidate is logged and never aborts the link.
func (l *PeerLink) HandleCandidate(ctx context.Context, cand domain.ICECandidate) error {
	if l.closed {
		return domain.ErrLinkClosed
	}
	if !l.hasRemoteDescription {
		l.candidates.Enqueue(cand)
		l.logger.Debugw("buffered candidate",
			"call_id", l.callID, "remote_id", l.remoteID, "buffered", l.candidates.Len())
		return nil
	}
	if err := l.pc.AddICECandidate(ctx, cand); err != nil {
		l.logger.Warnw("failed to apply candidate",
			"call_id", l.callID, "remote_id", l.remoteID, "error", err)
	}
	return nil
}

func (l *PeerLink) flushCandidates(ctx context.Context) {
	cands := l.candidates.DequeueAll()
	for _, cand := range cands {
		if err := l.pc.AddICECandidate(ctx, cand); err != nil {
			l.logger.Warnw("failed to apply buffered candidate",
				"call_id", l.callID, "remote_id", l.remoteID, "error", err)
		}
	}
	if len(cands) > 0 {
		l.logger.Debugw("flushed candidate buffer",
			"call_id", l.callID, "remote_id", l.remoteID, "count", len(cands))
	}
}

// Close tears the link down: connection primitive closed, buffered
// candidates and dedup state discarded. Idempotent.
func (l *PeerLink) Close() {
	if l.closed {
		return
	}
	l.closed = true
	l.state = domain.NegotiationClosed
	l.connState = domain.ConnectionClosed
	l.candidates.Clear()
	if err := l.pc.Close(); err != nil {
		l.logger.Warnw("error closing peer connection",
			"call_id", l.callID, "remote_id", l.remoteID, "error", err)
	}
}

func (l *PeerLink) send(ctx context.Context, env domain.Envelope) {
	l.metrics.RecordSignal(env.Kind, true)
	if err := l.channel.Send(ctx, env); err != nil {
		// Fire-and-forget contract: the relay owns delivery, we only log.
		l.logger.Warnw("failed to send envelope",
			"call_id", l.callID, "remote_id", l.remoteID, "kind", env.Kind, "error", err)
	}
}
