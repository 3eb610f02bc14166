package domain

// The original client tracked screen sharing, mute and camera state as
// independent booleans with the update logic duplicated per message
// handler. Each concern is an explicit enum here with a single transition
// function, decoupled from the negotiation state machine.

type ScreenShareState string

const (
	ScreenShareInactive ScreenShareState = "inactive"
	ScreenShareActive   ScreenShareState = "active"
)

// NextScreenShare applies a screen-share signal to the current state.
// Repeated starts or stops are absorbed without a change.
func NextScreenShare(current ScreenShareState, kind SignalKind) (ScreenShareState, bool) {
	switch kind {
	case KindScreenShareStart:
		return ScreenShareActive, current != ScreenShareActive
	case KindScreenShareStop:
		return ScreenShareInactive, current != ScreenShareInactive
	default:
		return current, false
	}
}

type MicrophoneState string

const (
	MicrophoneLive  MicrophoneState = "live"
	MicrophoneMuted MicrophoneState = "muted"
)

func ToggleMicrophone(current MicrophoneState) MicrophoneState {
	if current == MicrophoneLive {
		return MicrophoneMuted
	}
	return MicrophoneLive
}

type CameraState string

const (
	CameraLive CameraState = "live"
	CameraOff  CameraState = "off"
)

func ToggleCamera(current CameraState) CameraState {
	if current == CameraLive {
		return CameraOff
	}
	return CameraLive
}

// ParticipantMediaState aggregates the per-concern states for one remote
// participant as learned from signaling.
type ParticipantMediaState struct {
	ScreenShare ScreenShareState
	Microphone  MicrophoneState
	Camera      CameraState
	Quality     QualityLevel
}

// NewParticipantMediaState returns the state assumed for a freshly joined
// participant.
func NewParticipantMediaState() ParticipantMediaState {
	return ParticipantMediaState{
		ScreenShare: ScreenShareInactive,
		Microphone:  MicrophoneLive,
		Camera:      CameraLive,
		Quality:     QualityMedium,
	}
}
