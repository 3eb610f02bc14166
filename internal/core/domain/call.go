package domain

import "time"

type CallType string

const (
	CallTypeAudio       CallType = "audio"
	CallTypeVideo       CallType = "video"
	CallTypeScreenShare CallType = "screen_share"
)

type CallStatus string

const (
	CallStatusWaiting CallStatus = "waiting"
	CallStatusRinging CallStatus = "ringing"
	CallStatusActive  CallStatus = "active"
	CallStatusEnded   CallStatus = "ended"
	CallStatusMissed  CallStatus = "missed"
)

// CallSession is the persisted record of one group call.
type CallSession struct {
	ID               CallID
	Initiator        ParticipantID
	Type             CallType
	Status           CallStatus
	StartedAt        time.Time
	EndedAt          *time.Time
	RecordingEnabled bool
	Participants     []CallParticipant
}

// ActiveParticipants returns the participants currently in the call.
func (c *CallSession) ActiveParticipants() []CallParticipant {
	var active []CallParticipant
	for _, p := range c.Participants {
		if p.Active {
			active = append(active, p)
		}
	}
	return active
}

// CallQualityReport is one participant's measurement of its media quality,
// uploaded periodically while the call runs.
type CallQualityReport struct {
	CallID        CallID
	ParticipantID ParticipantID
	Timestamp     time.Time
	BandwidthKbps int
	LatencyMs     int
	PacketLoss    float64
	VideoQuality  QualityLevel
	AudioQuality  QualityLevel
}
