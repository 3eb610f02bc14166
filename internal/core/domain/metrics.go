package domain

import "time"

// NetworkMetrics captures the link-level measurements derived from RTCP
// reports and client uploads.
type NetworkMetrics struct {
	Timestamp     time.Time
	BandwidthDown int // kbps
	BandwidthUp   int // kbps
	PacketLoss    float64
	Latency       time.Duration
	Jitter        time.Duration
}

// LinkEvent is the notification a mesh coordinator raises when a peer
// link changes connection state. Terminal marks abandonment after the
// retry budget is exhausted; no further attempts follow for that peer.
type LinkEvent struct {
	CallID   CallID
	RemoteID ParticipantID
	State    ConnectionState
	Terminal bool
}
