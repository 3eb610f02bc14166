package webrtc

import (
	"context"
	"fmt"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// EngineConfig holds the connection factory configuration.
type EngineConfig struct {
	ICEServers []webrtc.ICEServer
	PortRange  struct {
		Min uint16
		Max uint16
	}
}

// Engine builds pion peer connections for the mesh coordinator.
type Engine struct {
	config EngineConfig
	api    *webrtc.API
	sink   MetricsSink
	logger *zap.SugaredLogger
}

func NewEngine(config EngineConfig, logger *zap.Logger) *Engine {
	settingEngine := webrtc.SettingEngine{}
	if config.PortRange.Min > 0 && config.PortRange.Max > 0 {
		settingEngine.SetEphemeralUDPPortRange(config.PortRange.Min, config.PortRange.Max)
	}

	return &Engine{
		config: config,
		api:    webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine)),
		logger: logger.Sugar(),
	}
}

var _ ports.ConnectionFactory = (*Engine)(nil)

// SetMetricsSink installs the receiver of RTCP-derived measurements.
// Connections created afterwards report into it.
func (e *Engine) SetMetricsSink(sink MetricsSink) {
	e.sink = sink
}

func (e *Engine) NewConnection(ctx context.Context, remoteID domain.ParticipantID) (ports.PeerConnection, error) {
	pc, err := e.api.NewPeerConnection(webrtc.Configuration{
		ICEServers:   e.config.ICEServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlanWithFallback,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	// Audio and video transceivers are negotiated up front so the
	// first offer already carries both m-lines.
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendrecv,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add %s transceiver: %w", kind, err)
		}
	}

	if e.sink != nil {
		watchRTCP(pc, remoteID, e.sink, e.logger)
	}

	e.logger.Debugw("created peer connection", "remote_id", remoteID)

	return &pionConnection{pc: pc, logger: e.logger}, nil
}

// pionConnection adapts *webrtc.PeerConnection to the engine-agnostic
// port. State and candidate callbacks are installed once; nil handlers
// from pion are translated into end-of-gathering no-ops.
type pionConnection struct {
	pc     *webrtc.PeerConnection
	logger *zap.SugaredLogger
}

var _ ports.PeerConnection = (*pionConnection)(nil)

func (c *pionConnection) CreateOffer(ctx context.Context) (domain.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	return domain.SessionDescription{Type: domain.SDPTypeOffer, SDP: offer.SDP}, nil
}

func (c *pionConnection) CreateAnswer(ctx context.Context) (domain.SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	return domain.SessionDescription{Type: domain.SDPTypeAnswer, SDP: answer.SDP}, nil
}

func (c *pionConnection) SetLocalDescription(ctx context.Context, desc domain.SessionDescription) error {
	sd := webrtc.SessionDescription{Type: sdpType(desc.Type), SDP: desc.SDP}
	if err := c.pc.SetLocalDescription(sd); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return nil
}

// SetRemoteDescription applies a remote offer or answer. A remote offer
// arriving while a local offer is pending rolls the local one back
// first, which is what lets glare resolve without an extra round trip.
func (c *pionConnection) SetRemoteDescription(ctx context.Context, desc domain.SessionDescription) error {
	if desc.Type == domain.SDPTypeOffer &&
		c.pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		rollback := webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}
		if err := c.pc.SetLocalDescription(rollback); err != nil {
			return fmt.Errorf("rollback local offer: %w", err)
		}
	}

	sd := webrtc.SessionDescription{Type: sdpType(desc.Type), SDP: desc.SDP}
	if err := c.pc.SetRemoteDescription(sd); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (c *pionConnection) AddICECandidate(ctx context.Context, cand domain.ICECandidate) error {
	init := webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	}
	if err := c.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

func (c *pionConnection) OnConnectionStateChange(fn func(domain.ConnectionState)) {
	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		fn(connectionState(state))
	})
}

func (c *pionConnection) OnICECandidate(fn func(domain.ICECandidate)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			// End of gathering.
			return
		}
		init := cand.ToJSON()
		fn(domain.ICECandidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})
}

func (c *pionConnection) Close() error {
	return c.pc.Close()
}

func sdpType(t domain.SDPType) webrtc.SDPType {
	if t == domain.SDPTypeAnswer {
		return webrtc.SDPTypeAnswer
	}
	return webrtc.SDPTypeOffer
}

func connectionState(state webrtc.PeerConnectionState) domain.ConnectionState {
	switch state {
	case webrtc.PeerConnectionStateNew:
		return domain.ConnectionNew
	case webrtc.PeerConnectionStateConnecting:
		return domain.ConnectionConnecting
	case webrtc.PeerConnectionStateConnected:
		return domain.ConnectionConnected
	case webrtc.PeerConnectionStateDisconnected:
		return domain.ConnectionDisconnected
	case webrtc.PeerConnectionStateFailed:
		return domain.ConnectionFailed
	case webrtc.PeerConnectionStateClosed:
		return domain.ConnectionClosed
	default:
		return domain.ConnectionNew
	}
}
