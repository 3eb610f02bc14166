package domain

// NegotiationState tracks the offer/answer exchange for a single peer link.
type NegotiationState string

const (
	NegotiationIdle            NegotiationState = "idle"
	NegotiationHaveLocalOffer  NegotiationState = "have-local-offer"
	NegotiationHaveRemoteOffer NegotiationState = "have-remote-offer"
	NegotiationStable          NegotiationState = "stable"
	NegotiationClosed          NegotiationState = "closed"
)

// ConnectionState mirrors the state reported by the underlying connection
// primitive for one peer link.
type ConnectionState string

const (
	ConnectionNew          ConnectionState = "new"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionFailed       ConnectionState = "failed"
	ConnectionClosed       ConnectionState = "closed"
)

type SDPType string

const (
	SDPTypeOffer  SDPType = "offer"
	SDPTypeAnswer SDPType = "answer"
)

// SessionDescription is the engine-agnostic form of an offer or answer.
type SessionDescription struct {
	Type SDPType `json:"type"`
	SDP  string  `json:"sdp"`
}

// ICECandidate carries one piece of connectivity information between peers.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdp_mid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index,omitempty"`
}
