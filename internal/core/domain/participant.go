package domain

import "time"

type CallID string
type ParticipantID string

// Participant is a member of a call as seen by the mesh coordinator.
type Participant struct {
	ID          ParticipantID
	DisplayName string
}

// CallParticipant is the persisted membership record for a call.
type CallParticipant struct {
	Participant
	JoinedAt time.Time
	LeftAt   *time.Time
	Active   bool
}
