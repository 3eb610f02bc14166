package domain

import (
	"encoding/json"
	"fmt"
)

// SignalKind tags a signaling envelope. Routing switches over it
// exhaustively, so adding a kind means touching every switch.
type SignalKind string

const (
	KindOffer             SignalKind = "offer"
	KindAnswer            SignalKind = "answer"
	KindCandidate         SignalKind = "candidate"
	KindParticipantJoined SignalKind = "participant-joined"
	KindParticipantLeft   SignalKind = "participant-left"
	KindQualityChange     SignalKind = "quality-change"
	KindScreenShareStart  SignalKind = "screen-share-start"
	KindScreenShareStop   SignalKind = "screen-share-stop"
)

// Known reports whether k is a kind this build understands.
func (k SignalKind) Known() bool {
	switch k {
	case KindOffer, KindAnswer, KindCandidate,
		KindParticipantJoined, KindParticipantLeft,
		KindQualityChange, KindScreenShareStart, KindScreenShareStop:
		return true
	}
	return false
}

// Envelope is the wire record exchanged through the signaling relay.
// An empty TargetID addresses every participant in the call.
type Envelope struct {
	Kind     SignalKind      `json:"type"`
	CallID   CallID          `json:"call_id,omitempty"`
	SenderID ParticipantID   `json:"sender_id"`
	TargetID ParticipantID   `json:"target_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

func (e Envelope) Broadcast() bool { return e.TargetID == "" }

type SessionPayload struct {
	Description SessionDescription `json:"description"`
}

type CandidatePayload struct {
	Candidate ICECandidate `json:"candidate"`
}

type JoinPayload struct {
	DisplayName string `json:"display_name"`
}

type QualityPayload struct {
	Quality QualityLevel `json:"quality"`
}

// DecodeSession extracts the offer/answer description from the payload.
func (e Envelope) DecodeSession() (SessionDescription, error) {
	var p SessionPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return SessionDescription{}, fmt.Errorf("invalid %s payload: %w", e.Kind, err)
	}
	if p.Description.SDP == "" {
		return SessionDescription{}, fmt.Errorf("invalid %s payload: empty sdp", e.Kind)
	}
	return p.Description, nil
}

// DecodeCandidate extracts the ICE candidate from the payload.
func (e Envelope) DecodeCandidate() (ICECandidate, error) {
	var p CandidatePayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ICECandidate{}, fmt.Errorf("invalid candidate payload: %w", err)
	}
	if p.Candidate.Candidate == "" {
		return ICECandidate{}, fmt.Errorf("invalid candidate payload: empty candidate")
	}
	return p.Candidate, nil
}

// DecodeJoin extracts the join payload. A missing payload is fine; the
// relay announces joins on behalf of participants that sent no profile.
func (e Envelope) DecodeJoin() (JoinPayload, error) {
	if len(e.Payload) == 0 {
		return JoinPayload{}, nil
	}
	var p JoinPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return JoinPayload{}, fmt.Errorf("invalid join payload: %w", err)
	}
	return p, nil
}

// DecodeQuality extracts the quality-change payload.
func (e Envelope) DecodeQuality() (QualityPayload, error) {
	var p QualityPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return QualityPayload{}, fmt.Errorf("invalid quality payload: %w", err)
	}
	return p, nil
}

// NewSessionEnvelope builds an offer or answer envelope addressed to target.
func NewSessionEnvelope(kind SignalKind, callID CallID, sender, target ParticipantID, desc SessionDescription) Envelope {
	payload, _ := json.Marshal(SessionPayload{Description: desc})
	return Envelope{
		Kind:     kind,
		CallID:   callID,
		SenderID: sender,
		TargetID: target,
		Payload:  payload,
	}
}

// NewCandidateEnvelope builds a candidate envelope addressed to target.
func NewCandidateEnvelope(callID CallID, sender, target ParticipantID, cand ICECandidate) Envelope {
	payload, _ := json.Marshal(CandidatePayload{Candidate: cand})
	return Envelope{
		Kind:     KindCandidate,
		CallID:   callID,
		SenderID: sender,
		TargetID: target,
		Payload:  payload,
	}
}

// NewJoinEnvelope builds a broadcast participant-joined announcement.
func NewJoinEnvelope(callID CallID, sender ParticipantID, displayName string) Envelope {
	payload, _ := json.Marshal(JoinPayload{DisplayName: displayName})
	return Envelope{
		Kind:     KindParticipantJoined,
		CallID:   callID,
		SenderID: sender,
		Payload:  payload,
	}
}

// NewLeaveEnvelope builds a broadcast participant-left announcement.
func NewLeaveEnvelope(callID CallID, sender ParticipantID) Envelope {
	return Envelope{
		Kind:     KindParticipantLeft,
		CallID:   callID,
		SenderID: sender,
	}
}
